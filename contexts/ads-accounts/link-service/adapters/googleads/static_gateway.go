package googleads

import (
	"context"
	"sync"

	"adreel/contexts/ads-accounts/link-service/domain/entities"
)

// StaticGateway answers link calls from fixed values. It backs local runs
// with ads sync disabled and tests.
type StaticGateway struct {
	mu       sync.Mutex
	Statuses map[string]entities.ExternalLinkStatus
	QueryErr error
	LinkErr  error
	Created  []string
}

func (g *StaticGateway) CreateClientLink(_ context.Context, customerID string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.LinkErr != nil {
		return "", g.LinkErr
	}
	g.Created = append(g.Created, customerID)
	return "customers/0000000000/customerClientLinks/" + customerID + "~1", nil
}

func (g *StaticGateway) QueryLinkStatus(_ context.Context, resourceName string) (entities.ExternalLinkStatus, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.QueryErr != nil {
		return "", g.QueryErr
	}
	if status, ok := g.Statuses[resourceName]; ok {
		return status, nil
	}
	return entities.ExternalStatusPending, nil
}

func (g *StaticGateway) SetStatus(resourceName string, status entities.ExternalLinkStatus) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.Statuses == nil {
		g.Statuses = make(map[string]entities.ExternalLinkStatus)
	}
	g.Statuses[resourceName] = status
}

func (g *StaticGateway) SetQueryErr(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.QueryErr = err
}
