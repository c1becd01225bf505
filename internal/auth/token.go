// Package auth issues and verifies the HS256 account tokens that stand in
// for the external auth provider.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"github.com/QQCPM/ChatChat/internal/apperrors"
	"github.com/QQCPM/ChatChat/internal/models"
)

// Claims carries the account the token was issued for.
type Claims struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// Account returns the account described by c.
func (c Claims) Account() models.Account {
	return models.Account{ID: c.Subject, DisplayName: c.Name, Email: c.Email}
}

// Issuer signs and verifies tokens with a shared secret.
type Issuer struct {
	secret []byte
	now    func() time.Time
}

func NewIssuer(secret string) *Issuer {
	return &Issuer{secret: []byte(secret), now: time.Now}
}

// Issue signs a token for account valid for ttl. A zero ttl never expires.
func (i *Issuer) Issue(account models.Account, ttl time.Duration) (string, error) {
	if account.ID == "" {
		return "", apperrors.New(apperrors.CodeInvalidArgument, "account id is required")
	}
	now := i.now()
	claims := Claims{
		Name:  account.DisplayName,
		Email: account.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  account.ID,
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	if ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Parse verifies token and returns its account. Every failure is
// UNAUTHENTICATED.
func (i *Issuer) Parse(token string) (models.Account, error) {
	var claims Claims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return i.secret, nil
	})
	if err != nil {
		return models.Account{}, apperrors.Wrap(apperrors.CodeUnauthenticated, reason(err), err)
	}
	if !parsed.Valid || claims.Subject == "" {
		return models.Account{}, apperrors.New(apperrors.CodeUnauthenticated, "token is not valid")
	}
	return claims.Account(), nil
}

// AccountFromUnverified reads the account out of token without checking the
// signature. chatctl uses it to know who it is signed in as.
func AccountFromUnverified(token string) (models.Account, error) {
	var claims Claims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return models.Account{}, apperrors.Wrap(apperrors.CodeUnauthenticated, "token is malformed", err)
	}
	if claims.Subject == "" {
		return models.Account{}, apperrors.New(apperrors.CodeUnauthenticated, "token has no subject")
	}
	return claims.Account(), nil
}

func reason(err error) string {
	var ve *jwt.ValidationError
	if errors.As(err, &ve) {
		switch {
		case ve.Errors&jwt.ValidationErrorExpired != 0:
			return "token has expired"
		case ve.Errors&jwt.ValidationErrorMalformed != 0:
			return "token is malformed"
		case ve.Errors&jwt.ValidationErrorSignatureInvalid != 0:
			return "token signature is invalid"
		}
	}
	return "invalid token"
}
