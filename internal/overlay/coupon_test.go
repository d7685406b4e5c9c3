package overlay

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateCouponCode_Format(t *testing.T) {
	code := GenerateCouponCode("SPRING")

	require.True(t, strings.HasPrefix(code, "SPRING-"))
	suffix := strings.TrimPrefix(code, "SPRING-")
	assert.Len(t, suffix, couponSuffixLength)
	for _, r := range suffix {
		assert.True(t, strings.ContainsRune(couponAlphabet, r), "unexpected rune %q", r)
	}
}

func TestGenerateCouponCode_EmptyPrefixUsesDefault(t *testing.T) {
	code := GenerateCouponCode("  ")
	assert.True(t, strings.HasPrefix(code, defaultCouponPrefix+"-"))
}

func TestGenerateCouponCode_NoAmbiguousCharacters(t *testing.T) {
	for range 200 {
		suffix := strings.TrimPrefix(GenerateCouponCode("X"), "X-")
		assert.False(t, strings.ContainsAny(suffix, "0O1I"), suffix)
	}
}

func TestGenerateCouponCode_Varies(t *testing.T) {
	codes := make(map[string]struct{}, 50)
	for range 50 {
		codes[GenerateCouponCode("WELCOME")] = struct{}{}
	}
	assert.Greater(t, len(codes), 45)
}
