package payment

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Simulator succeeds every charge after a fixed delay, except for phone
// numbers on its decline list.
type Simulator struct {
	delay    time.Duration
	declined map[string]struct{}
	signer   *CallbackSigner
	log      zerolog.Logger
}

// NewSimulator builds a simulator. signer may be nil when callbacks are not used.
func NewSimulator(delay time.Duration, declinedPhones []string, signer *CallbackSigner, log zerolog.Logger) *Simulator {
	declined := make(map[string]struct{}, len(declinedPhones))
	for _, p := range declinedPhones {
		declined[normalizePhone(p)] = struct{}{}
	}
	return &Simulator{
		delay:    delay,
		declined: declined,
		signer:   signer,
		log:      log.With().Str("component", "payment_simulator").Logger(),
	}
}

func (s *Simulator) Charge(ctx context.Context, c Charge) (Receipt, error) {
	if c.Amount < 0 {
		return Receipt{}, ErrInvalidAmount
	}

	if s.delay > 0 {
		timer := time.NewTimer(s.delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return Receipt{}, ctx.Err()
		case <-timer.C:
		}
	} else if err := ctx.Err(); err != nil {
		return Receipt{}, err
	}

	if _, ok := s.declined[normalizePhone(c.Phone)]; ok {
		s.log.Info().Str("reference", c.Reference).Msg("simulated decline")
		return Receipt{}, ErrDeclined
	}

	receipt := Receipt{
		Reference:   c.Reference,
		ProviderRef: "SIM-" + strings.ToUpper(uuid.NewString()[:8]),
		Amount:      c.Amount,
		PaidAt:      time.Now(),
	}
	s.log.Debug().
		Str("reference", c.Reference).
		Str("provider_ref", receipt.ProviderRef).
		Int64("amount", c.Amount).
		Msg("simulated charge settled")
	return receipt, nil
}

// SignCallback produces the token the provider would post to the callback
// endpoint for reference.
func (s *Simulator) SignCallback(reference string, status CallbackStatus) (string, error) {
	if s.signer == nil {
		return "", ErrCallbacksDisabled
	}
	return s.signer.Sign(reference, status)
}

func normalizePhone(p string) string {
	p = strings.TrimSpace(p)
	p = strings.TrimPrefix(p, "+")
	return strings.ReplaceAll(p, " ", "")
}
