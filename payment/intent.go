package payment

import (
	"context"
	"math"
)

// Intent is what the client needs to confirm a charge with the processor
type Intent struct {
	ClientSecret string `json:"clientSecret"`
	IntentID     string `json:"intentId"`
}

// IntentRequest asks the processor for a new payment intent
type IntentRequest struct {
	AmountMinor int64
	// IdempotencyKey is forwarded to the processor when non-empty
	IdempotencyKey string
}

// IntentCreator creates processor-side payment intents
type IntentCreator interface {
	CreateIntent(ctx context.Context, req IntentRequest) (*Intent, error)
}

// IntentStore remembers the Intent created for a client-supplied key.
// Lookup returns nil, nil when nothing is remembered.
type IntentStore interface {
	Lookup(ctx context.Context, key string) (*Intent, error)
	Remember(ctx context.Context, key string, intent *Intent) error
}

// ToMinorUnits converts a decimal currency amount into the processor's
// integer minor units, rounding half away from zero
func ToMinorUnits(amount float64) int64 {
	return int64(math.Round(amount * 100))
}
