package httpapi

import (
	"context"
	"net/http"
	"strings"

	"github.com/dmitrijs2005/miloc/internal/common"
)

type ctxKey string

const userIDKey ctxKey = "userID"

// UserIDFromContext returns the authenticated user id set by requireUser.
func UserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDKey).(string)
	return id, ok && id != ""
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get(common.AuthorizationHeaderName)
	if len(h) < len(common.BearerPrefix) || !strings.EqualFold(h[:len(common.BearerPrefix)], common.BearerPrefix) {
		return ""
	}
	return strings.TrimSpace(h[len(common.BearerPrefix):])
}

// requireUser rejects requests without a valid bearer access token and puts
// the user id into the request context.
func (s *Server) requireUser(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			s.unauthorized(w)
			return
		}

		userID, err := s.accounts.UserIDFromAccessToken(token)
		if err != nil {
			s.logger.Debug(r.Context(), "rejected access token", "error", err)
			s.unauthorized(w)
			return
		}

		next(w, r.WithContext(context.WithValue(r.Context(), userIDKey, userID)))
	}
}

func (s *Server) unauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="miloc"`)
	writeError(w, http.StatusUnauthorized, msgUnauthorized)
}
