// Package sink persists the outcome of a pipeline run.
//
// The inventory file in the run directory is always written through a
// [FileSink]. A [MongoSink] can additionally archive every record in a
// MongoDB collection so inventories from many runs can be queried together.
package sink

import (
	"context"

	"github.com/matzehuels/ossinventory/pkg/inventory"
)

// Sink receives a finished outcome.
type Sink interface {
	Write(ctx context.Context, o *inventory.Outcome) error
	Close(ctx context.Context) error
}

// FileSink writes the inventory file.
type FileSink struct {
	Path   string
	Format inventory.Format
}

// Write creates or truncates Path. Failures are OUTPUT_FAILED.
func (s *FileSink) Write(_ context.Context, o *inventory.Outcome) error {
	return inventory.WriteFile(s.Path, o, s.Format)
}

// Close is a no-op.
func (s *FileSink) Close(context.Context) error { return nil }

var _ Sink = (*FileSink)(nil)
