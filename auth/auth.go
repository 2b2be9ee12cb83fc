package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

// ContextKey is a defined type to be used in context.Context containing the Claims
type ContextKey string

// Context is key used in context.Context containing the Claims
const Context ContextKey = "authContext"

// TokenLifetime is how long an issued token stays valid. There is no refresh
// and no revocation: a token is usable until it expires.
const TokenLifetime = time.Hour * 24 * 7

// ErrInvalidToken is returned for every token that fails verification,
// regardless of the reason
var ErrInvalidToken = errors.New("invalid token")

// Auth issues and verifies bearer tokens carrying a user's email
type Auth struct {
	Options
	jwtKey []byte
}

// Claims is the struct for jwt token
type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
}

// Options provides initialization parameters for Auth
type Options struct {
	Logger *zap.Logger

	JWTSigningKey string

	// Clock defaults to time.Now
	Clock func() time.Time
}

func (o *Options) validate() error {
	if o == nil {
		return fmt.Errorf("nil option is invalid")
	}
	if o.Logger == nil {
		return fmt.Errorf("nil Logger is invalid")
	}
	if len(o.JWTSigningKey) < 16 {
		return fmt.Errorf("jwt signing key must be at least 16 characters")
	}
	if o.Clock == nil {
		o.Clock = time.Now
	}
	return nil
}

// New will return a new instance of Auth for authentication
func New(option Options) (*Auth, error) {
	if err := option.validate(); err != nil {
		return nil, err
	}
	return &Auth{
		Options: option,
		jwtKey:  []byte(option.JWTSigningKey),
	}, nil
}

// ClaimsFromContext returns the Claims attached by Middleware
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(Context).(*Claims)
	return claims, ok && claims != nil
}
