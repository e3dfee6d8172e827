package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"github.com/freelanceflow/freelanceflow-backend/pkg/communication"
	"github.com/golang-jwt/jwt/v5"
)

// Claims are the claims of a token issued by the identity provider
type Claims struct {
	Role string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// AuthenticationMiddleware checks if the user login token is valid and responds with an error if it's not the case
type AuthenticationMiddleware struct {
	ResponseManager *communication.ResponseManager
	Secret          string
}

type key string

const (
	// KeyUserID the key for the request variable for getting the user id
	KeyUserID key = "userID"
	// KeyRole the key for the request variable for getting the user role
	KeyRole key = "role"
)

// Middleware gets called when a request needs to be authenticated
func (m *AuthenticationMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(writer http.ResponseWriter, r *http.Request) {
		extractedToken, err := extractTokenStringFromHeader(r)
		if err != nil {
			m.ResponseManager.RespondWithError(writer, http.StatusUnauthorized, "No authorization", err)
			return
		}

		claims, err := m.verify(extractedToken)
		if err != nil {
			m.ResponseManager.RespondWithError(writer, http.StatusUnauthorized, "Token invalid", err)
			return
		}

		ctx := context.WithValue(r.Context(), KeyUserID, claims.Subject)
		ctx = context.WithValue(ctx, KeyRole, claims.Role)
		next.ServeHTTP(writer, r.WithContext(ctx))
	})
}

func (m *AuthenticationMiddleware) verify(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return []byte(m.Secret), nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}

	if claims.Subject == "" {
		return nil, errors.New("token has no subject")
	}

	return claims, nil
}

// UserID returns the authenticated user of a request context
func UserID(ctx context.Context) string {
	userID, _ := ctx.Value(KeyUserID).(string)
	return userID
}

// Role returns the role of the authenticated user of a request context
func Role(ctx context.Context) string {
	role, _ := ctx.Value(KeyRole).(string)
	return role
}

// SchedulerMiddleware protects operator routes with a shared secret
type SchedulerMiddleware struct {
	ResponseManager *communication.ResponseManager
	Secret          string
}

// Middleware gets called for every operator request
func (m *SchedulerMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(writer http.ResponseWriter, r *http.Request) {
		extractedToken, err := extractTokenStringFromHeader(r)
		if err != nil {
			m.ResponseManager.RespondWithError(writer, http.StatusUnauthorized, "No authorization", err)
			return
		}

		if m.Secret == "" || subtle.ConstantTimeCompare([]byte(extractedToken), []byte(m.Secret)) != 1 {
			m.ResponseManager.RespondWithError(writer, http.StatusUnauthorized, "Wrong scheduler secret", nil)
			return
		}

		next.ServeHTTP(writer, r)
	})
}

func extractTokenStringFromHeader(r *http.Request) (string, error) {
	nonformatted := r.Header.Get("Authorization")
	if strings.TrimSpace(nonformatted) == "" {
		return "", errors.New("no authorization token specified")
	}

	tokenParts := strings.Fields(nonformatted)
	if len(tokenParts) != 2 || tokenParts[0] != "Bearer" {
		return "", errors.New("token must be a bearer token")
	}

	return tokenParts[1], nil
}
