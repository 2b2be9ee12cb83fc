package external

import (
	"context"
	"fmt"
	"strings"

	"github.com/mononest/backend/payment"

	extErrors "github.com/pkg/errors"
	"github.com/stripe/stripe-go/v72"
	"github.com/stripe/stripe-go/v72/client"
)

func NewStripeClient(key string) *client.API {
	sc := &client.API{}
	sc.Init(key, nil)
	return sc
}

var _ payment.IntentCreator = &StripeIntents{}

// StripeIntents creates card PaymentIntents in a single currency
type StripeIntents struct {
	client   *client.API
	currency string
}

// NewStripeIntents returns an IntentCreator backed by Stripe
func NewStripeIntents(sc *client.API, currency string) (*StripeIntents, error) {
	if sc == nil {
		return nil, fmt.Errorf("nil Stripe client is invalid")
	}
	currency = strings.ToLower(strings.TrimSpace(currency))
	if len(currency) != 3 {
		return nil, fmt.Errorf("currency must be a three-letter ISO code, got %q", currency)
	}
	return &StripeIntents{
		client:   sc,
		currency: currency,
	}, nil
}

func (s *StripeIntents) params(ctx context.Context, req payment.IntentRequest) *stripe.PaymentIntentParams {
	params := &stripe.PaymentIntentParams{
		Params: stripe.Params{
			Context: ctx,
		},
		Amount:             stripe.Int64(req.AmountMinor),
		Currency:           stripe.String(s.currency),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
	}
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}
	return params
}

// CreateIntent asks Stripe for a new PaymentIntent. Without an idempotency key
// every call creates a distinct intent.
func (s *StripeIntents) CreateIntent(ctx context.Context, req payment.IntentRequest) (*payment.Intent, error) {
	if req.AmountMinor <= 0 {
		return nil, fmt.Errorf("amount must be positive, got %d", req.AmountMinor)
	}
	pi, err := s.client.PaymentIntents.New(s.params(ctx, req))
	if err != nil {
		return nil, extErrors.Wrap(err, "Cannot create PaymentIntent on Stripe")
	}
	return &payment.Intent{
		ClientSecret: pi.ClientSecret,
		IntentID:     pi.ID,
	}, nil
}
