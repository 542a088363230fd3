package web

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/JonMunkholm/workbench/internal/core"
	"github.com/JonMunkholm/workbench/internal/logging"
	"github.com/JonMunkholm/workbench/internal/web/middleware"
)

// SessionCookie names the cookie holding the session id.
const SessionCookie = "eda_session"

// sessions resolves the session id from the cookie, issuing a new one when
// it is missing or not a UUID, and attaches it and the client to the
// request context.
func (s *Server) sessions(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := ""
		if c, err := r.Cookie(SessionCookie); err == nil {
			if u, err := uuid.Parse(c.Value); err == nil {
				id = u.String()
			}
		}
		if id == "" {
			id = uuid.NewString()
			http.SetCookie(w, &http.Cookie{
				Name:     SessionCookie,
				Value:    id,
				Path:     "/",
				HttpOnly: true,
				Secure:   s.cfg.Session.CookieSecure,
				SameSite: http.SameSiteLaxMode,
			})
		}

		ctx := logging.ContextWithSession(r.Context(), id)
		ctx = core.ContextWithClient(ctx, core.ClientInfo{
			IPAddress: middleware.ClientIP(r),
			UserAgent: r.UserAgent(),
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// sessionID returns the id resolved by the sessions middleware.
func sessionID(r *http.Request) string {
	return logging.SessionFromContext(r.Context())
}
