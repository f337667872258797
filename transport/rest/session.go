package rest

import (
	"context"
	"net/http"

	"github.com/rocketscienceinc/memorygame-backend/internal/pkg"
)

type sessionCtxKey struct{}

type sessionCookie struct {
	name   string
	maxAge int
	secure bool
}

// middleware - resolves the session from the cookie, issuing a new one when it is missing or malformed.
func (that *sessionCookie) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sessionID := ""
		if cookie, err := r.Cookie(that.name); err == nil && pkg.IsValidSessionID(cookie.Value) {
			sessionID = cookie.Value
		}

		if sessionID == "" {
			sessionID = pkg.GenerateNewSessionID()
			http.SetCookie(w, &http.Cookie{
				Name:     that.name,
				Value:    sessionID,
				Path:     "/",
				MaxAge:   that.maxAge,
				HttpOnly: true,
				Secure:   that.secure,
				SameSite: http.SameSiteLaxMode,
			})
		}

		ctx := context.WithValue(r.Context(), sessionCtxKey{}, sessionID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func sessionIDFromContext(ctx context.Context) string {
	sessionID, _ := ctx.Value(sessionCtxKey{}).(string)
	return sessionID
}
