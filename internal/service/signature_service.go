package service

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// HMACSignatureService implements ports.SignatureService using HMAC-SHA256
// over the secret shared with the chat gateway.
type HMACSignatureService struct {
	secret []byte
}

func NewHMACSignatureService(secret string) *HMACSignatureService {
	return &HMACSignatureService{secret: []byte(secret)}
}

// Sign returns the lowercase hex HMAC-SHA256 of payload.
func (s *HMACSignatureService) Sign(payload string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify compares in constant time.
func (s *HMACSignatureService) Verify(payload string, signature string) bool {
	return hmac.Equal([]byte(s.Sign(payload)), []byte(signature))
}

// BuildCanonicalString constructs METHOD|PATH|TIMESTAMP|NONCE|ACTOR|BODY.
// The actor is signed because it alone selects whose wallet and privileges
// a request uses.
func (s *HMACSignatureService) BuildCanonicalString(method, path string, timestamp int64, nonce, actorID, body string) string {
	return fmt.Sprintf("%s|%s|%d|%s|%s|%s", method, path, timestamp, nonce, actorID, body)
}
