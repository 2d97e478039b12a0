package auth

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	stderrors "errors"

	"github.com/avoronin/bankaccounts/internal/infrastructure/redis"
	service "github.com/avoronin/bankaccounts/internal/services"
	pkgerrors "github.com/avoronin/bankaccounts/pkg/errors"
	"github.com/golang-jwt/jwt/v5"
)

type contextKey string

const usernameKey contextKey = "username"

// UsernameFromContext returns the authenticated username set by Middleware.
func UsernameFromContext(ctx context.Context) (string, bool) {
	username, ok := ctx.Value(usernameKey).(string)
	return username, ok
}

// Middleware guards the balance operations. It accepts HTTP Basic
// credentials, verified against the stored account on every request, or a
// Bearer JWT previously issued by login. Both paths resolve to a username
// in the request context.
func Middleware(svc service.AccountService, redisClient redis.RedisClient, jwtSecret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if username, password, ok := r.BasicAuth(); ok {
				authenticated, err := svc.Authenticate(r.Context(), username, password)
				if err != nil {
					if stderrors.Is(err, pkgerrors.ErrUnauthorized) {
						http.Error(w, "invalid username or password", http.StatusUnauthorized)
						return
					}
					slog.Error("authentication check failed", "username", username, "error", err)
					http.Error(w, "internal server error", http.StatusInternalServerError)
					return
				}
				ctx := context.WithValue(r.Context(), usernameKey, authenticated)
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				http.Error(w, "authorization header missing", http.StatusUnauthorized)
				return
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				http.Error(w, "invalid authorization header", http.StatusUnauthorized)
				return
			}

			tokenStr := parts[1]
			token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, fmt.Errorf("unexpected signing method: %v", token.Method.Alg())
				}
				return []byte(jwtSecret), nil
			})
			if err != nil || !token.Valid {
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}

			claims, ok := token.Claims.(jwt.MapClaims)
			if !ok {
				http.Error(w, "invalid token claims", http.StatusUnauthorized)
				return
			}

			username, ok := claims["username"].(string)
			if !ok || username == "" {
				http.Error(w, "invalid username in token", http.StatusUnauthorized)
				return
			}

			// Tokens are revocable: login stores them in Redis and delete
			// removes them, so a presented token must still be there.
			redisKey := fmt.Sprintf("account:%s:token", username)
			storedToken, err := redisClient.Get(r.Context(), redisKey)
			if err != nil || storedToken != tokenStr {
				slog.Warn("invalid or revoked token", "username", username, "error", err)
				http.Error(w, "invalid or revoked token", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), usernameKey, username)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
