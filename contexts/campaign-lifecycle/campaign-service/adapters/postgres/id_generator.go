package postgresadapter

import (
	"context"

	"github.com/google/uuid"
)

// UUIDGenerator issues campaign and audit event identifiers.
type UUIDGenerator struct{}

func (UUIDGenerator) NewID(_ context.Context) (string, error) {
	return uuid.NewString(), nil
}
