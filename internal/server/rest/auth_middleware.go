package rest

import (
	"context"
	"net/http"
	"strings"

	"github.com/dmitrijs2005/anoncommunity/internal/common"
	"github.com/dmitrijs2005/anoncommunity/internal/server/models"
)

type ctxKey string

const currentUserKey ctxKey = "currentUser"

// bearerToken extracts the token from the Authorization header. ok is false
// when the header is present but is not a usable bearer credential.
func bearerToken(r *http.Request) (token string, ok bool) {
	header := r.Header.Get(common.AuthorizationHeaderName)
	if header == "" {
		return "", true
	}
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, common.BearerScheme) {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func withCurrentUser(ctx context.Context, u *models.User) context.Context {
	return context.WithValue(ctx, currentUserKey, u)
}

// currentUser returns the authenticated user or nil for anonymous requests.
func currentUser(ctx context.Context) *models.User {
	u, _ := ctx.Value(currentUserKey).(*models.User)
	return u
}

// requireAuth rejects requests without a valid session.
func (s *HTTPServer) requireAuth(next http.Handler) http.Handler {
	return s.authenticate(next, false)
}

// optionalAuth lets anonymous requests through but still rejects a
// presented token that fails validation.
func (s *HTTPServer) optionalAuth(next http.Handler) http.Handler {
	return s.authenticate(next, true)
}

func (s *HTTPServer) authenticate(next http.Handler, optional bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "authorization header format must be Bearer {token}")
			return
		}

		var (
			user *models.User
			err  error
		)
		if optional {
			user, err = s.guard.AuthenticateOptional(r.Context(), token)
		} else {
			user, err = s.guard.Authenticate(r.Context(), token)
		}
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}

		next.ServeHTTP(w, r.WithContext(withCurrentUser(r.Context(), user)))
	})
}
