package server

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/powercast/powercast/pkg/log"
)

// userMiddleware resolves the user of a request. Without a token verifier
// every request acts as demo-user; otherwise the subject of a valid bearer
// ID token is the user id.
func (s *Server) userMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := log.WithAttrs(r.Context(), slog.String("reqPath", r.URL.Path), slog.String("reqMethod", r.Method))

		userID := demoUserID
		if s.verifyToken != nil {
			authHeader := r.Header.Get("Authorization")
			switch {
			case authHeader == "":
				if !s.allowAnonymous {
					writeJSONError(w, "authentication required", http.StatusUnauthorized)
					return
				}
			case !strings.HasPrefix(authHeader, "Bearer "):
				log.Ctx(ctx).WarnContext(ctx, "invalid auth header")
				writeJSONError(w, "invalid auth header", http.StatusUnauthorized)
				return
			default:
				token, err := s.verifyToken(ctx, strings.TrimPrefix(authHeader, "Bearer "))
				if err != nil {
					log.Ctx(ctx).WarnContext(ctx, "token validation failed", slog.Any("error", err))
					writeJSONError(w, "invalid token", http.StatusUnauthorized)
					return
				}
				userID = token.Subject
			}
		}

		ctx = log.WithAttrs(ctx, slog.String("userID", userID))
		ctx = context.WithValue(ctx, userIDContextKey, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
