package auth

import (
	"crypto/rsa"
	"fmt"

	"github.com/golang-jwt/jwt/v4"
	"github.com/tradegate/server/internal/wire"
	"go.uber.org/zap"
)

// Verifier checks client credential tokens. With a backend public key it
// verifies RS256 JWTs whose payload carries a string "id" claim. Without a
// key (development mode) the raw token is taken as the user id.
type Verifier struct {
	publicKey *rsa.PublicKey
	log       *zap.Logger
}

// NewVerifier builds a verifier from a PEM-encoded RSA public key.
// An empty key enables development mode.
func NewVerifier(publicKeyPEM []byte, log *zap.Logger) (*Verifier, error) {
	v := &Verifier{log: log}
	if len(publicKeyPEM) == 0 {
		return v, nil
	}
	key, err := jwt.ParseRSAPublicKeyFromPEM(publicKeyPEM)
	if err != nil {
		return nil, fmt.Errorf("parse backend public key: %w", err)
	}
	v.publicKey = key
	return v, nil
}

// Enabled reports whether real token verification is active.
func (v *Verifier) Enabled() bool {
	return v.publicKey != nil
}

// VerifyToken returns the user id carried by the token. Verification
// failures of any shape come back as AuthError.
func (v *Verifier) VerifyToken(token string) (string, error) {
	if v.publicKey == nil {
		// Development mode: the token is the user id.
		if token == "" {
			return "", wire.ErrAuth("empty user id")
		}
		return token, nil
	}

	parsed, err := jwt.Parse(token,
		func(*jwt.Token) (any, error) { return v.publicKey, nil },
		jwt.WithValidMethods([]string{"RS256"}),
	)
	if err != nil {
		v.log.Debug("token verification failed", zap.Error(err))
		return "", wire.ErrAuth("token verification failed")
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return "", wire.ErrAuth("malformed token payload")
	}
	id, ok := claims["id"].(string)
	if !ok || id == "" {
		return "", wire.ErrAuth("token payload missing id")
	}
	return id, nil
}
