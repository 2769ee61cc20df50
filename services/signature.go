package services

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"strings"
)

// SignIPN returns the lowercase hex HMAC-SHA512 of body.
func SignIPN(body []byte, secret string) string {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyIPNSignature checks the x-nowpayments-sig header against the raw body.
// A header of the wrong length is rejected before the constant-time compare.
func VerifyIPNSignature(body []byte, header, secret string) bool {
	header = strings.TrimSpace(header)
	if header == "" || secret == "" {
		return false
	}
	expected := SignIPN(body, secret)
	if len(header) != len(expected) {
		return false
	}
	return hmac.Equal([]byte(expected), []byte(header))
}
