package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/dgrijalva/jwt-go"

	"github.com/stockwatch/backend/internal/models"
	"github.com/stockwatch/backend/internal/services"
	"github.com/stockwatch/backend/internal/utils"
)

// AuthMiddleware checks for a valid access token and resolves it to a user
// ID stored in the request context. Anything less than a well-formed,
// unexpired access token for an existing active user fails closed with 401.
func AuthMiddleware(jwtSecretKey []byte, userService services.UserService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authorizationHeader := r.Header.Get("Authorization")
			if !strings.HasPrefix(authorizationHeader, "Bearer ") {
				unauthorized(w)
				return
			}
			tokenString := strings.TrimPrefix(authorizationHeader, "Bearer ")

			// Parse and validate the token
			claims := &models.Claims{}
			token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, errors.New("unexpected signing method")
				}
				return jwtSecretKey, nil
			})
			if err != nil || !token.Valid || claims.TokenType != models.TokenTypeAccess {
				unauthorized(w)
				return
			}

			userID, err := userService.GetUserIDByUsername(claims.Username)
			if err != nil {
				unauthorized(w)
				return
			}

			ctx := utils.SetUserIDToContext(r.Context(), userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{"error": "Unauthorized"})
}
