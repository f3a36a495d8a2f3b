package cli

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/matzehuels/ossinventory/pkg/observability"
)

// runStats counts pipeline, HTTP and cache events for the run summary.
// It is registered as every observability hook for the duration of a fetch.
type runStats struct {
	requests   atomic.Int64
	httpErrors atomic.Int64
	resolved   atomic.Int64
	fetched    atomic.Int64
	bytes      atomic.Int64
	cacheHits  atomic.Int64
	cacheMiss  atomic.Int64
}

func (s *runStats) OnRunStart(context.Context, string, int) {}
func (s *runStats) OnRunComplete(context.Context, string, int, int, time.Duration, error) {
}

func (s *runStats) OnResolveComplete(_ context.Context, _, _ string, _ time.Duration, err error) {
	if err == nil {
		s.resolved.Add(1)
	}
}

func (s *runStats) OnFetchComplete(_ context.Context, _, _ string, n int64, _ time.Duration, err error) {
	if err == nil {
		s.fetched.Add(1)
		s.bytes.Add(n)
	}
}

func (s *runStats) OnRequest(context.Context, string, string, string) { s.requests.Add(1) }
func (s *runStats) OnResponse(context.Context, string, string, string, int, time.Duration) {
}
func (s *runStats) OnError(context.Context, string, string, string, error) { s.httpErrors.Add(1) }

func (s *runStats) OnCacheHit(context.Context, string)      { s.cacheHits.Add(1) }
func (s *runStats) OnCacheMiss(context.Context, string)     { s.cacheMiss.Add(1) }
func (s *runStats) OnCacheSet(context.Context, string, int) {}

// register installs s as the global hooks and returns a function restoring
// the no-op defaults.
func (s *runStats) register() func() {
	observability.SetPipelineHooks(s)
	observability.SetHTTPHooks(s)
	observability.SetCacheHooks(s)
	return observability.Reset
}

var (
	_ observability.PipelineHooks = (*runStats)(nil)
	_ observability.HTTPHooks     = (*runStats)(nil)
	_ observability.CacheHooks    = (*runStats)(nil)
)
