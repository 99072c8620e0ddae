// File: internal/infra/security/callback_token.go
package security

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// CallbackTokenService mints and verifies the per-job token embedded in the
// webhook URL handed to the execution service at dispatch. The webhook
// endpoint is reachable from the open internet, so every push must prove it
// belongs to a job we actually dispatched.
type CallbackTokenService struct {
	secret []byte
	ttl    time.Duration
}

func NewCallbackTokenService(secret string, ttl time.Duration) (*CallbackTokenService, error) {
	if secret == "" {
		return nil, errors.New("callback token secret is required")
	}
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &CallbackTokenService{secret: []byte(secret), ttl: ttl}, nil
}

// Issue signs a token bound to one job id.
func (s *CallbackTokenService) Issue(jobID string) (string, error) {
	claims := jwt.MapClaims{
		"job_id": jobID,
		"iat":    time.Now().Unix(),
		"exp":    time.Now().Add(s.ttl).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// Verify checks the signature and expiry and returns the bound job id.
func (s *CallbackTokenService) Verify(token string) (string, error) {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", fmt.Errorf("verify callback token: %w", err)
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return "", errors.New("callback token: unexpected claims type")
	}
	jobID, _ := claims["job_id"].(string)
	if jobID == "" {
		return "", errors.New("callback token: missing job_id claim")
	}
	return jobID, nil
}
