package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/QQCPM/ChatChat/internal/api/respond"
	"github.com/QQCPM/ChatChat/internal/apperrors"
	"github.com/QQCPM/ChatChat/internal/models"
)

type contextKey int

const accountKey contextKey = iota

// TokenParser verifies a bearer token.
type TokenParser interface {
	Parse(token string) (models.Account, error)
}

// Auth rejects requests without a valid bearer token and stores the account
// in the request context. When allowQuery is set the token may also come
// from the token query parameter, which browsers need for websockets.
func Auth(parser TokenParser, allowQuery bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := bearer(r, allowQuery)
			if err != nil {
				respond.Error(w, r, err)
				return
			}
			account, err := parser.Parse(token)
			if err != nil {
				logrus.WithError(err).WithField("path", r.URL.Path).Debug("Rejected token")
				respond.Error(w, r, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithAccount(r.Context(), account)))
		})
	}
}

func bearer(r *http.Request, allowQuery bool) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		if q := r.URL.Query().Get("token"); allowQuery && q != "" {
			return q, nil
		}
		return "", apperrors.New(apperrors.CodeUnauthenticated, "authorization header required")
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return "", apperrors.New(apperrors.CodeUnauthenticated, "invalid token format")
	}
	return token, nil
}

// WithAccount returns ctx carrying account.
func WithAccount(ctx context.Context, account models.Account) context.Context {
	return context.WithValue(ctx, accountKey, account)
}

// AccountFrom returns the authenticated account of a request context.
func AccountFrom(ctx context.Context) (models.Account, bool) {
	account, ok := ctx.Value(accountKey).(models.Account)
	return account, ok && account.ID != ""
}
