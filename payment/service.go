package payment

import (
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/mononest/backend/broker"
	resp "github.com/mononest/backend/response"

	"github.com/go-chi/chi"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

var validate *validator.Validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// IdempotencyHeader lets a client retry intent creation without creating a second intent
const IdempotencyHeader = "Idempotency-Key"

// Options contains the configuration for Service router
type Options struct {
	PaymentManager *Manager
	Intents        IntentCreator
	// IntentStore is optional
	IntentStore IntentStore
	Publisher   broker.Publisher
	Logger      *zap.Logger
}

// Service is the payment API router
type Service struct {
	Options
}

// NewService will create an instance of the payment API router
func NewService(option Options) (*Service, error) {
	if option.PaymentManager == nil {
		return nil, fmt.Errorf("nil PaymentManager is invalid")
	}
	if option.Intents == nil {
		return nil, fmt.Errorf("nil Intents is invalid")
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

func (s *Service) listPayments(w http.ResponseWriter, r *http.Request) {
	payments, err := s.PaymentManager.List(r.Context())
	if err != nil {
		s.Logger.Error("Unable to list payments",
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected().AddMessages("Cannot get the list of payments"))
		return
	}

	resp.WriteResponse(w, r, payments)
}

func (s *Service) recordPayment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var rec Record
	if e := resp.DecodeJSON(w, r, &rec); e != nil {
		resp.WriteError(w, r, e)
		return
	}
	if err := validate.Struct(&rec); err != nil {
		resp.WriteError(w, r, resp.ErrValidation(err))
		return
	}

	logger := s.Logger.With(
		zap.String("PaymentIntentID", rec.PaymentIntentID),
		zap.String("CustomerEmail", rec.CustomerEmail),
	)

	result, err := s.PaymentManager.Create(ctx, &rec)
	if err != nil {
		logger.Error("Unable to record payment",
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected().AddMessages("Unable to record payment"))
		return
	}

	if err := s.Publisher.Publish(ctx, broker.TopicPaymentRecorded, map[string]interface{}{
		"insertedId":      result.InsertedID,
		"paymentIntentId": rec.PaymentIntentID,
		"customerEmail":   rec.CustomerEmail,
		"totalAmount":     *rec.TotalAmount,
	}); err != nil {
		logger.Error("Unable to publish payment",
			zap.Error(err),
		)
	}

	resp.WriteStatus(w, r, http.StatusCreated, result)
}

// IntentRequestBody is the client's request for a payment intent, in decimal currency units
type IntentRequestBody struct {
	Amount *float64 `json:"amount" validate:"required,gt=0"`
}

func (s *Service) createIntent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var body IntentRequestBody
	if e := resp.DecodeJSON(w, r, &body); e != nil {
		resp.WriteError(w, r, e)
		return
	}
	if err := validate.Struct(&body); err != nil {
		resp.WriteError(w, r, resp.ErrValidation(err))
		return
	}

	req := IntentRequest{
		AmountMinor: ToMinorUnits(*body.Amount),
	}
	if req.AmountMinor <= 0 {
		resp.WriteError(w, r, resp.ErrBadRequest().AddMessages("amount is below the smallest currency unit"))
		return
	}
	// a key reused with another amount names a different intent
	if key := strings.TrimSpace(r.Header.Get(IdempotencyHeader)); key != "" {
		req.IdempotencyKey = fmt.Sprintf("%s:%d", key, req.AmountMinor)
	}

	logger := s.Logger.With(zap.Int64("AmountMinor", req.AmountMinor))

	replayKey := ""
	if req.IdempotencyKey != "" && s.IntentStore != nil {
		replayKey = req.IdempotencyKey
		remembered, err := s.IntentStore.Lookup(ctx, replayKey)
		if err != nil {
			logger.Warn("Unable to look up remembered intent",
				zap.Error(err),
			)
		}
		if remembered != nil {
			resp.WriteResponse(w, r, remembered)
			return
		}
	}

	intent, err := s.Intents.CreateIntent(ctx, req)
	if err != nil {
		logger.Error("Unable to create payment intent",
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected().AddMessages("Unable to create payment intent"))
		return
	}

	if replayKey != "" {
		if err := s.IntentStore.Remember(ctx, replayKey, intent); err != nil {
			logger.Warn("Unable to remember intent",
				zap.Error(err),
			)
		}
	}

	resp.WriteResponse(w, r, intent)
}

// IntentHandler serves intent creation; it is mounted outside Router's prefix
func (s *Service) IntentHandler() http.Handler {
	r := chi.NewRouter()

	r.Post("/", s.createIntent)

	return r
}

// Router will return the routes under payment API
func (s *Service) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/", s.listPayments)
	r.Post("/", s.recordPayment)

	return r
}
