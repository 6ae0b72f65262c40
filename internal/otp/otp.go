// Package otp implements the stateless one-time-password codec used by the
// email verification and password reset flows. The reset state lives entirely
// in the token handed to the client: base32 over JSON carrying the user ID and
// a freshly generated TOTP secret. There is no server-side pending-reset
// table; validity comes from the time-boxed code alone.
package otp

import (
	"crypto/rand"
	"encoding/base32"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	otplib "github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

// DefaultTTL is the code validity window when callers pass no explicit TTL.
const DefaultTTL = 600 * time.Second

// codeDigits is the fixed code length.
const codeDigits = otplib.DigitsSix

// TokenPayload is the reversible content of an OTP token.
type TokenPayload struct {
	UserID string `json:"user_id"`
	Secret string `json:"secret"`
}

// Generate produces a 6-digit code valid for ttl and an opaque token that
// encodes the user ID together with the code's secret.
func Generate(userID uint64, ttl time.Duration) (code string, token string, err error) {
	return GenerateAt(userID, ttl, time.Now())
}

// GenerateAt is Generate with an explicit clock, for tests.
func GenerateAt(userID uint64, ttl time.Duration, now time.Time) (code string, token string, err error) {
	secret, errSecret := randomSecret()
	if errSecret != nil {
		return "", "", errSecret
	}

	code, errCode := totp.GenerateCodeCustom(secret, now, validateOpts(ttl, 0))
	if errCode != nil {
		return "", "", fmt.Errorf("otp: generate code: %w", errCode)
	}

	token = EncodeToken(TokenPayload{
		UserID: strconv.FormatUint(userID, 10),
		Secret: secret,
	})
	return code, token, nil
}

// Verify reports whether code matches the secret in the current ttl-wide
// time bucket. Zero skew: a code dies as soon as its bucket rolls over.
func Verify(code, secret string, ttl time.Duration) bool {
	return VerifyAt(code, secret, ttl, time.Now())
}

// VerifyAt is Verify with an explicit clock, for tests.
func VerifyAt(code, secret string, ttl time.Duration, now time.Time) bool {
	ok, err := totp.ValidateCustom(code, secret, now, validateOpts(ttl, 0))
	return err == nil && ok
}

// EncodeToken serializes a payload to its opaque wire form.
func EncodeToken(payload TokenPayload) string {
	data, _ := json.Marshal(payload)
	return base32.StdEncoding.EncodeToString(data)
}

// DecodeToken reverses EncodeToken. It returns nil for anything that is not
// valid base32-wrapped JSON; malformed input never escapes as an error.
func DecodeToken(token string) *TokenPayload {
	decoded, errDecode := base32.StdEncoding.DecodeString(token)
	if errDecode != nil {
		return nil
	}
	var payload TokenPayload
	if errUnmarshal := json.Unmarshal(decoded, &payload); errUnmarshal != nil {
		return nil
	}
	if payload.UserID == "" || payload.Secret == "" {
		return nil
	}
	return &payload
}

// validateOpts builds TOTP options for a ttl-wide time step.
func validateOpts(ttl time.Duration, skew uint) totp.ValidateOpts {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return totp.ValidateOpts{
		Period:    uint(ttl / time.Second),
		Skew:      skew,
		Digits:    codeDigits,
		Algorithm: otplib.AlgorithmSHA1,
	}
}

// randomSecret returns a fresh 160-bit base32 secret.
func randomSecret() (string, error) {
	buf := make([]byte, 20)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("otp: random secret: %w", err)
	}
	return base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(buf), nil
}
