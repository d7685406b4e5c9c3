package overlay

import (
	"crypto/rand"
	"math/big"
	"strings"
)

// couponAlphabet omits 0, O, 1 and I so codes survive being read off a screen.
const (
	couponAlphabet     = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	couponSuffixLength = 6
)

// GenerateCouponCode returns prefix-XXXXXX. Uniqueness is best-effort; the issuing
// backend owns deduplication.
func GenerateCouponCode(prefix string) string {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = defaultCouponPrefix
	}

	var b strings.Builder
	b.Grow(len(prefix) + 1 + couponSuffixLength)
	b.WriteString(prefix)
	b.WriteByte('-')

	limit := big.NewInt(int64(len(couponAlphabet)))
	for range couponSuffixLength {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			// crypto/rand does not fail on supported platforms
			panic(err)
		}
		b.WriteByte(couponAlphabet[n.Int64()])
	}
	return b.String()
}
