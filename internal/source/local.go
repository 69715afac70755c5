package source

import (
	"context"
	"fmt"

	"github.com/openwaters/crowd-depth/internal/domain"
	"github.com/openwaters/crowd-depth/internal/storage"
)

// LocalSource reads and writes observations through the embedded store. It
// is the fallback when no external history provider is available, and the
// only source variant with a write path.
type LocalSource struct {
	store *storage.Store
}

// NewLocalSource wraps the store as a Source.
func NewLocalSource(store *storage.Store) *LocalSource {
	return &LocalSource{store: store}
}

// Read streams stored observations inside the window.
func (s *LocalSource) Read(ctx context.Context, tf domain.Timeframe) (<-chan domain.Observation, <-chan error) {
	return s.store.Select(ctx, tf)
}

// Write records one incoming observation from the ingestion stream.
func (s *LocalSource) Write(ctx context.Context, o domain.Observation) error {
	if err := o.Validate(); err != nil {
		return fmt.Errorf("reject observation: %w", err)
	}
	return s.store.Insert(ctx, o)
}
