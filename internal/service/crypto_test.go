package service

import (
	"strings"
	"testing"
	"time"

	"vending-kernel/internal/core/domain"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testMasterKey = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

func TestDeriveKey_PurposesDiffer(t *testing.T) {
	sealing, err := DeriveKey(testMasterKey, KeyPurposeCredentialSealing)
	require.NoError(t, err)
	tokens, err := DeriveKey(testMasterKey, KeyPurposeActionTokens)
	require.NoError(t, err)

	assert.Len(t, sealing, 32)
	assert.Len(t, tokens, 32)
	assert.NotEqual(t, sealing, tokens)

	again, err := DeriveKey(testMasterKey, KeyPurposeCredentialSealing)
	require.NoError(t, err)
	assert.Equal(t, sealing, again)
}

func TestDeriveKey_RejectsBadMaster(t *testing.T) {
	_, err := DeriveKey("not-hex", KeyPurposeActionTokens)
	assert.Error(t, err)

	_, err = DeriveKey("0011", KeyPurposeActionTokens)
	assert.ErrorContains(t, err, "32 bytes")
}

func TestAESCredentialSealer_RoundTrip(t *testing.T) {
	key, err := DeriveKey(testMasterKey, KeyPurposeCredentialSealing)
	require.NoError(t, err)
	sealer, err := NewAESCredentialSealer(key)
	require.NoError(t, err)

	cred := domain.Credential{Account: "user@mail.com", Secret: "pass123", Validity: "1 Month", Note: "Profile 1"}
	sealed, err := sealer.Seal(cred)
	require.NoError(t, err)
	assert.NotContains(t, sealed, "pass123")

	other, err := sealer.Seal(cred)
	require.NoError(t, err)
	assert.NotEqual(t, sealed, other, "each seal uses a fresh nonce")

	opened, err := sealer.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, cred, opened)
}

func TestAESCredentialSealer_RejectsTampering(t *testing.T) {
	sealer, err := NewAESCredentialSealer(make([]byte, 32))
	require.NoError(t, err)

	sealed, err := sealer.Seal(domain.Credential{Account: "a", Secret: "s"})
	require.NoError(t, err)

	last := sealed[len(sealed)-1:]
	flipped := "0"
	if last == "0" {
		flipped = "1"
	}
	_, err = sealer.Open(sealed[:len(sealed)-1] + flipped)
	assert.Error(t, err)

	_, err = sealer.Open("zz")
	assert.Error(t, err)
	_, err = sealer.Open("00")
	assert.ErrorContains(t, err, "too short")
}

func TestNewAESCredentialSealer_KeyLength(t *testing.T) {
	_, err := NewAESCredentialSealer([]byte("short"))
	assert.Error(t, err)
}

func TestJWTActionTokenService_IssueAndValidate(t *testing.T) {
	svc := NewJWTActionTokenService([]byte("token-secret"), time.Hour, "vending-kernel")
	id := uuid.New()

	token, expiresAt, err := svc.Issue(id, domain.DecisionApprove)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, 5*time.Second)

	claims, err := svc.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, id, claims.RequestID)
	assert.Equal(t, domain.DecisionApprove, claims.Decision)
}

func TestJWTActionTokenService_Rejects(t *testing.T) {
	svc := NewJWTActionTokenService([]byte("token-secret"), time.Hour, "vending-kernel")
	id := uuid.New()

	t.Run("wrong secret", func(t *testing.T) {
		other := NewJWTActionTokenService([]byte("other-secret"), time.Hour, "vending-kernel")
		token, _, err := other.Issue(id, domain.DecisionReject)
		require.NoError(t, err)
		_, err = svc.Validate(token)
		assert.Error(t, err)
	})

	t.Run("expired", func(t *testing.T) {
		expired := NewJWTActionTokenService([]byte("token-secret"), -time.Minute, "vending-kernel")
		token, _, err := expired.Issue(id, domain.DecisionApprove)
		require.NoError(t, err)
		_, err = svc.Validate(token)
		assert.Error(t, err)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		other := NewJWTActionTokenService([]byte("token-secret"), time.Hour, "someone-else")
		token, _, err := other.Issue(id, domain.DecisionApprove)
		require.NoError(t, err)
		_, err = svc.Validate(token)
		assert.Error(t, err)
	})

	t.Run("wrong purpose", func(t *testing.T) {
		claims := jwt.MapClaims{
			"sub":      id.String(),
			"decision": "approve",
			"purpose":  "login",
			"exp":      time.Now().Add(time.Hour).Unix(),
			"iss":      "vending-kernel",
		}
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("token-secret"))
		require.NoError(t, err)
		_, err = svc.Validate(token)
		assert.ErrorContains(t, err, "purpose")
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := svc.Validate(strings.Repeat("x", 20))
		assert.Error(t, err)
	})
}
