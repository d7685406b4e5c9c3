package domain

// CaptureResult is the outcome of one email capture submission.
type CaptureResult string

const (
	// CaptureSubscribed means the address joined the list and no coupon was requested.
	CaptureSubscribed      CaptureResult = "subscribed"
	CaptureSubscribeFailed CaptureResult = "subscribe_failed"
	// CaptureIssueFailed means the subscription stands but the coupon email was not sent.
	CaptureIssueFailed CaptureResult = "issue_failed"
	CaptureCompleted   CaptureResult = "completed"
)

// Succeeded reports whether the owning instance should move to its success state.
func (r CaptureResult) Succeeded() bool {
	return r == CaptureSubscribed || r == CaptureCompleted
}

// CaptureOutcome carries the result of a submission along with its coupon code and cause.
type CaptureOutcome struct {
	Result     CaptureResult
	CouponCode string
	Err        error
}
