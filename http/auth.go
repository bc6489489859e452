package http

import (
	"net/http"
	"strings"

	"github.com/rs/zerolog/hlog"

	"github.com/gracechurch/tidings"
	"github.com/gracechurch/tidings/pkg/jwt"
)

// requireAdmin accepts a bearer token signed with auth.jwt.secret whose role
// is admin, and stores the admin in the request context.
func (s *Server) requireAdmin(fn appHandler) appHandler {
	return func(w http.ResponseWriter, r *http.Request) error {
		header := r.Header.Get("Authorization")
		if header == "" {
			return tidings.Errorf(tidings.ErrUnauthorized, "No token provided.")
		}
		parts := strings.Fields(header)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			return tidings.Errorf(tidings.ErrUnauthorized, "Invalid auth header.")
		}

		claims, err := jwt.Parse(s.Config.Auth.JWT.Secret, parts[1])
		if err != nil {
			return &tidings.Error{Code: tidings.ErrUnauthorized, Message: "Invalid token.", Op: "http.requireAdmin", Err: err}
		}
		if claims.Role != jwt.RoleAdmin {
			return tidings.Errorf(tidings.ErrForbidden, "Admin only.")
		}

		hlog.FromRequest(r).Info().Str("admin", claims.Email).Msg("admin authenticated")
		admin := &tidings.Admin{ID: claims.ID, Email: claims.Email}
		return fn(w, r.WithContext(tidings.NewContextWithAdmin(r.Context(), admin)))
	}
}
