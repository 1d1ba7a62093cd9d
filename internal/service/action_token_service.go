package service

import (
	"fmt"
	"time"

	"vending-kernel/internal/core/domain"
	"vending-kernel/internal/core/ports"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const actionTokenPurpose = "payment-decision"

// JWTActionTokenService implements ports.ActionTokenService using HS256 JWT.
type JWTActionTokenService struct {
	secret []byte
	expiry time.Duration
	issuer string
}

func NewJWTActionTokenService(secret []byte, expiry time.Duration, issuer string) *JWTActionTokenService {
	return &JWTActionTokenService{secret: secret, expiry: expiry, issuer: issuer}
}

// Issue signs a token bound to one request and one decision.
func (s *JWTActionTokenService) Issue(requestID uuid.UUID, decision domain.PaymentDecision) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(s.expiry)

	claims := jwt.MapClaims{
		"sub":      requestID.String(),
		"decision": string(decision),
		"purpose":  actionTokenPurpose,
		"iat":      now.Unix(),
		"exp":      expiresAt.Unix(),
		"iss":      s.issuer,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("signing token: %w", err)
	}
	return signed, expiresAt, nil
}

// Validate parses the token and returns its request id and decision.
func (s *JWTActionTokenService) Validate(tokenString string) (*ports.ActionClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithIssuer(s.issuer), jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("parsing token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}
	if purpose, _ := claims["purpose"].(string); purpose != actionTokenPurpose {
		return nil, fmt.Errorf("token purpose mismatch")
	}

	sub, _ := claims["sub"].(string)
	requestID, err := uuid.Parse(sub)
	if err != nil {
		return nil, fmt.Errorf("invalid request id in token: %w", err)
	}

	decision := domain.PaymentDecision(fmt.Sprint(claims["decision"]))
	if !decision.Valid() {
		return nil, fmt.Errorf("invalid decision in token")
	}

	return &ports.ActionClaims{RequestID: requestID, Decision: decision}, nil
}
