package service

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"

	"vending-kernel/internal/core/domain"
)

// AESCredentialSealer implements ports.CredentialSealer using AES-256-GCM.
// Sealed values are hex(nonce || ciphertext) of the JSON credential.
type AESCredentialSealer struct {
	aead cipher.AEAD
}

// NewAESCredentialSealer creates a sealer from a 32-byte key.
func NewAESCredentialSealer(key []byte) (*AESCredentialSealer, error) {
	if len(key) != 32 {
		return nil, fmt.Errorf("AES key must be 32 bytes, got %d", len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("creating cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("creating GCM: %w", err)
	}
	return &AESCredentialSealer{aead: aead}, nil
}

func (s *AESCredentialSealer) Seal(cred domain.Credential) (string, error) {
	plaintext, err := json.Marshal(cred)
	if err != nil {
		return "", fmt.Errorf("encoding credential: %w", err)
	}

	nonce := make([]byte, s.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generating nonce: %w", err)
	}

	return hex.EncodeToString(s.aead.Seal(nonce, nonce, plaintext, nil)), nil
}

func (s *AESCredentialSealer) Open(sealed string) (domain.Credential, error) {
	raw, err := hex.DecodeString(sealed)
	if err != nil {
		return domain.Credential{}, fmt.Errorf("decoding ciphertext: %w", err)
	}

	nonceSize := s.aead.NonceSize()
	if len(raw) < nonceSize {
		return domain.Credential{}, fmt.Errorf("ciphertext too short")
	}

	plaintext, err := s.aead.Open(nil, raw[:nonceSize], raw[nonceSize:], nil)
	if err != nil {
		return domain.Credential{}, fmt.Errorf("decrypting: %w", err)
	}

	var cred domain.Credential
	if err := json.Unmarshal(plaintext, &cred); err != nil {
		return domain.Credential{}, fmt.Errorf("decoding credential: %w", err)
	}
	return cred, nil
}
