package service

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// Key purposes derived from the master key.
const (
	KeyPurposeCredentialSealing = "credential-sealing"
	KeyPurposeActionTokens      = "action-tokens"
)

// DeriveKey expands the hex master key into a 32-byte key bound to purpose.
func DeriveKey(masterHex, purpose string) ([]byte, error) {
	master, err := hex.DecodeString(masterHex)
	if err != nil {
		return nil, fmt.Errorf("decoding master key: %w", err)
	}
	if len(master) != 32 {
		return nil, fmt.Errorf("master key must be 32 bytes, got %d", len(master))
	}

	key := make([]byte, 32)
	r := hkdf.New(sha256.New, master, nil, []byte("vending-kernel/"+purpose))
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("deriving %s key: %w", purpose, err)
	}
	return key, nil
}
