package user

import (
	"fmt"
	"net/http"
	"net/url"

	"github.com/mononest/backend/auth"
	"github.com/mononest/backend/broker"
	"github.com/mononest/backend/db"
	resp "github.com/mononest/backend/response"

	"github.com/go-chi/chi"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

var validate *validator.Validate = validator.New()

// Options contains the configuration for Service router
type Options struct {
	Auth        *auth.Auth
	UserManager *Manager
	Publisher   broker.Publisher
	Logger      *zap.Logger
}

// Service is the user API router
type Service struct {
	Options
}

// TokenResponse is returned by registration
type TokenResponse struct {
	Token string `json:"token"`
}

// NewService will create an instance of the user API router
func NewService(option Options) (*Service, error) {
	if option.Auth == nil {
		return nil, fmt.Errorf("nil Auth is invalid")
	}
	if option.UserManager == nil {
		return nil, fmt.Errorf("nil UserManager is invalid")
	}
	if option.Logger == nil {
		return nil, fmt.Errorf("nil Logger is invalid")
	}
	if option.Publisher == nil {
		option.Publisher = broker.Discard{}
	}
	return &Service{
		Options: option,
	}, nil
}

func (s *Service) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.UserManager.List(r.Context())
	if err != nil {
		s.Logger.Error("Unable to list users",
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected().AddMessages("Cannot get the list of users"))
		return
	}

	resp.WriteResponse(w, r, users)
}

// register is idempotent per email: a repeated call issues a fresh token for
// the existing user and leaves the stored profile untouched
func (s *Service) register(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var profile db.Document
	if e := resp.DecodeJSON(w, r, &profile); e != nil {
		resp.WriteError(w, r, e)
		return
	}
	if profile == nil {
		resp.WriteError(w, r, resp.ErrInvalidJson())
		return
	}

	raw, _ := profile[EmailField].(string)
	email := NormalizeEmail(raw)
	if err := validate.Var(email, "required,email"); err != nil {
		resp.WriteError(w, r, resp.ErrBadRequest().AddMessages("email must be a valid email address"))
		return
	}
	profile[EmailField] = email

	logger := s.Logger.With(zap.String("email", email))

	created, err := s.UserManager.Register(ctx, profile)
	if err != nil {
		logger.Error("Unable to register User",
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected().AddMessages("Unable to register User"))
		return
	}

	if created {
		if err := s.Publisher.Publish(ctx, broker.TopicUserRegistered, map[string]interface{}{
			EmailField: email,
		}); err != nil {
			logger.Error("Unable to publish registration",
				zap.Error(err),
			)
		}
	}

	token, err := s.Auth.Issue(email)
	if err != nil {
		logger.Error("Unable to generate token",
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected())
		return
	}

	resp.WriteResponse(w, r, TokenResponse{
		Token: token,
	})
}

// getUser answers null rather than 404 for an unknown email
func (s *Service) getUser(w http.ResponseWriter, r *http.Request) {
	email := emailParam(r)

	logger := s.Logger.With(zap.String("email", email))

	user, err := s.UserManager.GetByEmail(r.Context(), email)
	if err != nil {
		logger.Error("Unable to query user",
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected().AddMessages("Cannot get details about the user"))
		return
	}

	resp.WriteResponse(w, r, user)
}

// updateUser merges the body into the caller's own profile
func (s *Service) updateUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	email := emailParam(r)

	claims, ok := auth.ClaimsFromContext(ctx)
	if !ok {
		s.Logger.Error("Context has no Claims")
		resp.WriteError(w, r, resp.ErrUnauthorized())
		return
	}

	logger := s.Logger.With(zap.String("email", email))

	if NormalizeEmail(claims.Email) != email {
		resp.WriteError(w, r, resp.ErrForbidden().AddMessages("Token does not belong to this user"))
		return
	}

	var patch db.Document
	if e := resp.DecodeJSON(w, r, &patch); e != nil {
		resp.WriteError(w, r, e)
		return
	}
	if e := checkPatch(patch, email); e != nil {
		resp.WriteError(w, r, e)
		return
	}

	result, err := s.UserManager.Update(ctx, email, patch)
	if err != nil {
		logger.Error("Unable to update user",
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected().AddMessages("Unable to update User"))
		return
	}

	if result.MatchedCount == 0 {
		resp.WriteError(w, r, resp.ErrNotFound().AddMessages("Cannot find user with specific email"))
		return
	}

	resp.WriteResponse(w, r, result)
}

// checkPatch rejects patches that are empty or would change the user's identity
func checkPatch(patch db.Document, email string) *resp.Error {
	if len(patch) == 0 {
		return resp.ErrBadRequest().AddMessages("Patch must set at least one field")
	}
	if _, ok := patch[db.IDField]; ok {
		return resp.ErrBadRequest().AddMessages("_id cannot be changed")
	}
	if v, ok := patch[EmailField]; ok {
		s, isString := v.(string)
		if !isString || NormalizeEmail(s) != email {
			return resp.ErrBadRequest().AddMessages("email cannot be changed")
		}
		patch[EmailField] = email
	}
	return nil
}

// emailParam reads the {email} path segment, which clients may percent-encode
func emailParam(r *http.Request) string {
	raw := chi.URLParam(r, "email")
	if unescaped, err := url.PathUnescape(raw); err == nil {
		raw = unescaped
	}
	return NormalizeEmail(raw)
}

// Router will return the routes under user API
func (s *Service) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/", s.listUsers)
	r.Post("/", s.register)
	r.Get("/{email}", s.getUser)
	r.With(s.Auth.Middleware()).Patch("/{email}", s.updateUser)

	return r
}
