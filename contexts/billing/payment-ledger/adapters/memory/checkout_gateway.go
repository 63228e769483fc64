package memory

import (
	"context"
	"sync"
	"time"

	"adreel/contexts/billing/payment-ledger/ports"

	"github.com/google/uuid"
)

// CheckoutGateway hands out fake session ids for local runs and tests.
type CheckoutGateway struct {
	mu       sync.Mutex
	Requests []ports.CheckoutRequest
	Err      error
}

func (g *CheckoutGateway) OpenSession(_ context.Context, req ports.CheckoutRequest) (ports.CheckoutSession, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.Err != nil {
		return ports.CheckoutSession{}, g.Err
	}
	g.Requests = append(g.Requests, req)
	sessionID := "cs_test_" + uuid.NewString()
	return ports.CheckoutSession{
		SessionID:   sessionID,
		CheckoutURL: "https://checkout.stripe.test/c/pay/" + sessionID,
		ExpiresAt:   time.Now().Add(24 * time.Hour).UTC(),
	}, nil
}
