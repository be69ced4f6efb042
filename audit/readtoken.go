package audit

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// IssueReadToken mints a short-lived HS256 JWT scoped to clientID, signed
// with secret. It is handed back to a client alongside its Register
// response so only that client can later fetch its own log via GET
// /api/device/{id}/logs — resolving the unauthenticated-logs-endpoint open
// question spec.md §9 flags as a TODO.
func IssueReadToken(secret []byte, clientID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": clientID,
		"iat": now.Unix(),
		"exp": now.Add(ttl).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

// VerifyReadToken checks tokenString's signature and expiry under secret
// and returns the client ID it is scoped to.
func VerifyReadToken(secret []byte, tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing method: %s", t.Method.Alg())
		}
		return secret, nil
	})
	if err != nil || !token.Valid {
		return "", fmt.Errorf("audit: read token invalid: %w", err)
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", fmt.Errorf("audit: read token claims malformed")
	}
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return "", fmt.Errorf("audit: read token missing subject")
	}
	return sub, nil
}
