package otp

import (
	"testing"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "JBSWY3DPEHPK3PXP"

func codeAt(t *testing.T, at time.Time) string {
	t.Helper()
	code, err := totp.GenerateCodeCustom(secret, at, totp.ValidateOpts{
		Period:    30,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	require.NoError(t, err)
	return code
}

func TestIsValid(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 15, 0, time.UTC)
	v := New(30*time.Second, 1, WithClock(func() time.Time { return now }))

	t.Run("current step", func(t *testing.T) {
		assert.True(t, v.IsValid(secret, codeAt(t, now)))
	})

	t.Run("one step of drift either side", func(t *testing.T) {
		assert.True(t, v.IsValid(secret, codeAt(t, now.Add(-30*time.Second))))
		assert.True(t, v.IsValid(secret, codeAt(t, now.Add(30*time.Second))))
	})

	t.Run("outside the window", func(t *testing.T) {
		assert.False(t, v.IsValid(secret, codeAt(t, now.Add(-2*time.Minute))))
	})

	t.Run("wrong code", func(t *testing.T) {
		good := codeAt(t, now)
		bad := "000000"
		if good == bad {
			bad = "111111"
		}
		assert.False(t, v.IsValid(secret, bad))
	})

	t.Run("empty or malformed input", func(t *testing.T) {
		assert.False(t, v.IsValid("", codeAt(t, now)))
		assert.False(t, v.IsValid(secret, ""))
		assert.False(t, v.IsValid("not-base32!", "123456"))
		assert.False(t, v.IsValid(secret, "12345"))
	})

	t.Run("lower-case secret accepted", func(t *testing.T) {
		assert.True(t, v.IsValid("jbswy3dpehpk3pxp", codeAt(t, now)))
	})
}

func TestZeroSkewRejectsNeighbours(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 15, 0, time.UTC)
	v := New(30*time.Second, 0, WithClock(func() time.Time { return now }))
	assert.True(t, v.IsValid(secret, codeAt(t, now)))
	assert.False(t, v.IsValid(secret, codeAt(t, now.Add(30*time.Second))))
}
