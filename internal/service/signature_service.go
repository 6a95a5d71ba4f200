package service

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// HMACSignatureService implements ports.SignatureService with HMAC-SHA256 over
// a secret shared with the payment processor.
type HMACSignatureService struct {
	secret []byte
}

// NewHMACSignatureService creates a signer bound to the processor webhook secret.
func NewHMACSignatureService(secret string) *HMACSignatureService {
	return &HMACSignatureService{secret: []byte(secret)}
}

// Sign returns the lowercase hex HMAC of payload.
func (s *HMACSignatureService) Sign(payload string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify compares in constant time. An empty secret never verifies.
func (s *HMACSignatureService) Verify(payload string, signature string) bool {
	if len(s.secret) == 0 || signature == "" {
		return false
	}
	return hmac.Equal([]byte(s.Sign(payload)), []byte(signature))
}

// CanonicalString builds METHOD|PATH|TIMESTAMP|NONCE|BODY.
func (s *HMACSignatureService) CanonicalString(method, path string, timestamp int64, nonce string, body []byte) string {
	return fmt.Sprintf("%s|%s|%d|%s|%s", method, path, timestamp, nonce, body)
}
