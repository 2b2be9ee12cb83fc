package auth

import (
	"context"
	"net/http"
	"strings"

	resp "github.com/mononest/backend/response"

	"github.com/golang-jwt/jwt/v5"
	extErrors "github.com/pkg/errors"
	"go.uber.org/zap"
)

var bearerPrefix = "Bearer "
var jwtSigningMethod = jwt.SigningMethodHS256

// Issue will create a signed jwt token for email, valid for TokenLifetime
func (a *Auth) Issue(email string) (string, error) {
	now := a.Clock()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(TokenLifetime)),
		},
		Email: email,
	}
	token := jwt.NewWithClaims(jwtSigningMethod, claims)
	signed, err := token.SignedString(a.jwtKey)
	if err != nil {
		return "", extErrors.Wrap(err, "Cannot sign token")
	}
	return signed, nil
}

// Verify returns the Claims embedded in token. Any failure, including
// malformed input, yields an error wrapping ErrInvalidToken.
func (a *Auth) Verify(token string) (*Claims, error) {
	if token == "" {
		return nil, extErrors.Wrap(ErrInvalidToken, "empty token")
	}
	claims := &Claims{}
	jwtToken, err := jwt.ParseWithClaims(token, claims, func(token *jwt.Token) (interface{}, error) {
		return a.jwtKey, nil
	},
		jwt.WithValidMethods([]string{jwtSigningMethod.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(a.Clock),
	)
	if err != nil {
		return nil, extErrors.Wrap(ErrInvalidToken, err.Error())
	}
	if !jwtToken.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Email == "" {
		return nil, extErrors.Wrap(ErrInvalidToken, "token has no email claim")
	}
	return claims, nil
}

// Middleware returns a http middleware to verify Bearer in the header.
// Requests without a valid token never reach next.
func (a *Auth) Middleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if !strings.HasPrefix(header, bearerPrefix) {
				resp.WriteError(w, r, resp.ErrUnauthorized())
				return
			}
			claims, err := a.Verify(strings.TrimSpace(header[len(bearerPrefix):]))
			if err != nil {
				a.Logger.Info("Rejected bearer token",
					zap.String("path", r.URL.Path),
					zap.Error(err),
				)
				resp.WriteError(w, r, resp.ErrUnauthorized())
				return
			}

			ctx := context.WithValue(r.Context(), Context, claims)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
