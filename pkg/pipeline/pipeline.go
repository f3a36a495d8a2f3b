// Package pipeline turns a list of declared dependencies into an inventory.
//
// For every dependency the [Coordinator] normalizes the declared constraint,
// resolves registry metadata, downloads the archive and records the result:
//
//	coord := pipeline.New(npmClient, fetcher, pipeline.Options{
//	    OutputDir:   "out/OSS_1700000000000",
//	    Concurrency: 4,
//	})
//	outcome, err := coord.Run(ctx, m.Dependencies)
//
// Failures are local to their dependency. They are logged, collected in
// [inventory.Outcome.Failures] and never stop sibling dependencies. The only
// fatal condition is an output directory that cannot be created.
//
// # Concurrency
//
// With the default Concurrency of 1 dependencies are processed strictly one
// after another. Larger values run up to that many dependencies at once.
// Records are always reported in declaration order, so the inventory does
// not depend on the concurrency bound or on completion order.
//
// # Cancellation
//
// When ctx is cancelled, dependencies that have not started are recorded as
// CANCELLED failures and in-flight requests are aborted. Run still returns
// the partial outcome, together with ctx.Err().
package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/ossinventory/pkg/archive"
	errs "github.com/matzehuels/ossinventory/pkg/errors"
	"github.com/matzehuels/ossinventory/pkg/integrations/npm"
	"github.com/matzehuels/ossinventory/pkg/inventory"
	"github.com/matzehuels/ossinventory/pkg/manifest"
	"github.com/matzehuels/ossinventory/pkg/observability"
	"github.com/matzehuels/ossinventory/pkg/version"
)

// Resolver looks up registry metadata for one package version.
type Resolver interface {
	Resolve(ctx context.Context, name, version string) (*npm.Metadata, error)
}

// Fetcher downloads one archive into dir.
type Fetcher interface {
	Fetch(ctx context.Context, name, version, url, dir string) (*archive.Result, error)
}

// Options configures a [Coordinator].
type Options struct {
	// OutputDir receives the downloaded archives. It is created if missing.
	OutputDir string

	// Concurrency bounds how many dependencies are processed at once.
	// Values below 1 mean 1.
	Concurrency int

	// RunID is copied into the outcome.
	RunID string

	Logger *log.Logger
}

type Coordinator struct {
	resolver Resolver
	fetcher  Fetcher
	opts     Options
}

// New creates a Coordinator.
func New(resolver Resolver, fetcher Fetcher, opts Options) *Coordinator {
	opts.Concurrency = max(opts.Concurrency, 1)
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	return &Coordinator{resolver: resolver, fetcher: fetcher, opts: opts}
}

// result is the outcome of one dependency: exactly one of record and failure
// is set.
type result struct {
	record  *inventory.Record
	failure *inventory.Failure
}

// Run processes deps and returns the collected outcome.
func (c *Coordinator) Run(ctx context.Context, deps []manifest.Dependency) (*inventory.Outcome, error) {
	if c.opts.OutputDir == "" {
		return nil, errs.New(errs.ErrCodeOutput, "output directory is required")
	}
	if err := archive.EnsureDir(c.opts.OutputDir); err != nil {
		return nil, err
	}

	start := time.Now()
	hooks := observability.Pipeline()
	hooks.OnRunStart(ctx, c.opts.RunID, len(deps))

	slots := make([]result, len(deps))
	var g errgroup.Group
	g.SetLimit(c.opts.Concurrency)

	for i, dep := range deps {
		if ctx.Err() != nil {
			slots[i] = cancelled(dep, ctx.Err())
			continue
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				slots[i] = cancelled(dep, err)
				return nil
			}
			slots[i] = c.process(ctx, dep)
			return nil
		})
	}
	_ = g.Wait()

	outcome := &inventory.Outcome{RunID: c.opts.RunID, Total: len(deps)}
	for _, r := range slots {
		if r.record != nil {
			outcome.Records = append(outcome.Records, *r.record)
			continue
		}
		outcome.Failures = append(outcome.Failures, *r.failure)
	}

	err := ctx.Err()
	hooks.OnRunComplete(ctx, c.opts.RunID, len(outcome.Records), len(outcome.Failures), time.Since(start), err)
	return outcome, err
}

func (c *Coordinator) process(ctx context.Context, dep manifest.Dependency) result {
	logger := c.opts.Logger.With("package", dep.Name)
	hooks := observability.Pipeline()

	token := version.Normalize(dep.Constraint)
	if token == "" {
		err := errs.New(errs.ErrCodeResolution, "constraint %q has no version", dep.Constraint)
		return c.fail(ctx, logger, dep, token, err)
	}
	if !version.IsConcrete(token) {
		logger.Warn("version is not exact; registry may resolve or reject it", "constraint", dep.Constraint, "version", token)
	}

	start := time.Now()
	meta, err := c.resolver.Resolve(ctx, dep.Name, token)
	hooks.OnResolveComplete(ctx, dep.Name, token, time.Since(start), err)
	if err != nil {
		return c.fail(ctx, logger, dep, token, err)
	}
	logger.Debug("resolved", "version", token, "source", meta.ArchiveURL)

	start = time.Now()
	res, err := c.fetcher.Fetch(ctx, dep.Name, meta.Version, meta.ArchiveURL, c.opts.OutputDir)
	var n int64
	if res != nil {
		n = res.Bytes
	}
	hooks.OnFetchComplete(ctx, dep.Name, meta.Version, n, time.Since(start), err)
	if err != nil {
		return c.fail(ctx, logger, dep, token, err)
	}
	logger.Info("fetched", "version", meta.Version, "path", res.Path, "bytes", res.Bytes)

	return result{record: &inventory.Record{
		Package:  dep.Name,
		Version:  token,
		Source:   meta.ArchiveURL,
		Meta:     meta.MetaURL,
		License:  meta.License,
		Homepage: meta.Homepage,
	}}
}

func (c *Coordinator) fail(ctx context.Context, logger *log.Logger, dep manifest.Dependency, token string, err error) result {
	code := errs.GetCode(err)
	if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		code = errs.ErrCodeCancelled
	}
	if code == "" {
		code = errs.ErrCodeInternal
	}
	logger.Error("dependency failed", "version", token, "kind", code, "err", errs.UserMessage(err))
	return result{failure: &inventory.Failure{
		Package:    dep.Name,
		Constraint: dep.Constraint,
		Version:    token,
		Code:       code,
		Err:        err,
	}}
}

func cancelled(dep manifest.Dependency, cause error) result {
	return result{failure: &inventory.Failure{
		Package:    dep.Name,
		Constraint: dep.Constraint,
		Version:    version.Normalize(dep.Constraint),
		Code:       errs.ErrCodeCancelled,
		Err:        errs.Wrap(errs.ErrCodeCancelled, cause, "%s not processed", dep.Name),
	}}
}
