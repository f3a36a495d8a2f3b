package cli

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/matzehuels/ossinventory/pkg/archive"
	"github.com/matzehuels/ossinventory/pkg/buildinfo"
	"github.com/matzehuels/ossinventory/pkg/config"
	errs "github.com/matzehuels/ossinventory/pkg/errors"
	"github.com/matzehuels/ossinventory/pkg/httputil"
	"github.com/matzehuels/ossinventory/pkg/integrations/npm"
	"github.com/matzehuels/ossinventory/pkg/inventory"
	"github.com/matzehuels/ossinventory/pkg/manifest"
	"github.com/matzehuels/ossinventory/pkg/pipeline"
	"github.com/matzehuels/ossinventory/pkg/sink"
)

// mongoTimeout bounds connecting to and writing into MongoDB.
const mongoTimeout = 30 * time.Second

// fetchFlags holds the raw flag values of the fetch command. Only flags the
// user set explicitly override the config file.
type fetchFlags struct {
	configPath      string
	registry        string
	concurrency     int
	retries         int
	timeout         time.Duration
	idleTimeout     time.Duration
	runTimeout      time.Duration
	userAgent       string
	format          string
	sort            bool
	dev             bool
	cache           bool
	cacheTTL        time.Duration
	redis           string
	mongoURI        string
	mongoDB         string
	mongoCollection string
}

func (c *CLI) fetchCommand() *cobra.Command {
	var f fetchFlags

	cmd := &cobra.Command{
		Use:   "fetch <package.json> [output-root]",
		Short: "Resolve and download dependencies and write the inventory",
		Long: `Resolve every entry of the manifest's "dependencies" against the npm registry,
download each tarball and write oss-packages.csv.

Each run creates <output-root>/OSS_<unix-millis>/ holding the archives and the
inventory. The output root defaults to the current directory.

Version constraints are not range-resolved: a single leading operator such as
^ or ~ is dropped and the remainder is looked up as an exact version.`,
		Example: `  # Sequential run into ./audit
  ossinventory fetch package.json ./audit

  # Eight concurrent downloads with legacy inventory layout
  ossinventory fetch package.json ./audit -j 8 --format legacy`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(f.configPath)
			if err != nil {
				return err
			}
			f.apply(cmd.Flags(), cfg)
			if err := cfg.Validate(); err != nil {
				return err
			}

			root := "."
			if len(args) > 1 {
				root = args[1]
			}
			return c.runFetch(cmd.Context(), args[0], root, cfg)
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&f.configPath, "config", "", "config file (default $XDG_CONFIG_HOME/ossinventory/config.toml)")
	fl.StringVar(&f.registry, "registry", npm.DefaultURLTemplate, "registry URL template with {package} and {version}")
	fl.IntVarP(&f.concurrency, "concurrency", "j", config.DefaultConcurrency, "dependencies processed at once")
	fl.IntVar(&f.retries, "retries", 0, "retries for transient registry errors")
	fl.DurationVar(&f.timeout, "timeout", config.DefaultTimeout, "timeout for each metadata request")
	fl.DurationVar(&f.idleTimeout, "idle-timeout", config.DefaultIdleTimeout, "abort a download that receives no data for this long")
	fl.DurationVar(&f.runTimeout, "run-timeout", 0, "stop the whole run after this long; unfinished dependencies are reported as cancelled (0 = no limit)")
	fl.StringVar(&f.userAgent, "user-agent", "", "User-Agent header (default ossinventory/<version>)")
	fl.StringVar(&f.format, "format", string(inventory.FormatCSV), "inventory format: csv or legacy")
	fl.BoolVar(&f.sort, "sort", false, "sort inventory rows by package and version")
	fl.BoolVar(&f.dev, "dev", false, "include devDependencies")
	fl.BoolVar(&f.cache, "cache", false, "cache registry metadata on disk")
	fl.DurationVar(&f.cacheTTL, "cache-ttl", config.DefaultCacheTTL, "metadata cache lifetime")
	fl.StringVar(&f.redis, "redis", "", "cache registry metadata in Redis at host:port")
	fl.StringVar(&f.mongoURI, "mongo-uri", "", "also store records in MongoDB")
	fl.StringVar(&f.mongoDB, "mongo-db", sink.DefaultMongoDatabase, "MongoDB database")
	fl.StringVar(&f.mongoCollection, "mongo-collection", sink.DefaultMongoCollection, "MongoDB collection")

	return cmd
}

// apply copies explicitly set flags over cfg.
func (f *fetchFlags) apply(fs *pflag.FlagSet, cfg *config.Config) {
	set := func(name string, fn func()) {
		if fs.Changed(name) {
			fn()
		}
	}
	set("registry", func() { cfg.Registry = f.registry })
	set("concurrency", func() { cfg.Concurrency = f.concurrency })
	set("retries", func() { cfg.Retries = f.retries })
	set("timeout", func() { cfg.Timeout.Duration = f.timeout })
	set("idle-timeout", func() { cfg.IdleTimeout.Duration = f.idleTimeout })
	set("run-timeout", func() { cfg.RunTimeout.Duration = f.runTimeout })
	set("user-agent", func() { cfg.UserAgent = f.userAgent })
	set("format", func() { cfg.Format = f.format })
	set("sort", func() { cfg.Sort = f.sort })
	set("dev", func() { cfg.Dev = f.dev })
	set("cache", func() { cfg.Cache.Enabled = f.cache })
	set("cache-ttl", func() { cfg.Cache.TTL.Duration = f.cacheTTL })
	set("redis", func() { cfg.Cache.Redis = f.redis })
	set("mongo-uri", func() { cfg.Mongo.URI = f.mongoURI })
	set("mongo-db", func() { cfg.Mongo.Database = f.mongoDB })
	set("mongo-collection", func() { cfg.Mongo.Collection = f.mongoCollection })
}

func (c *CLI) runFetch(ctx context.Context, manifestPath, outputRoot string, cfg *config.Config) error {
	logger := loggerFromContext(ctx)

	m, err := manifest.ParseFile(manifestPath, manifest.Options{IncludeDev: cfg.Dev})
	if err != nil {
		return err
	}
	for _, d := range m.Skipped {
		logger.Warn("skipping dependency without name or version", "package", d.Name, "constraint", d.Constraint)
	}
	format, err := inventory.ParseFormat(cfg.Format)
	if err != nil {
		return err
	}

	runID := uuid.NewString()
	logger = runLogger(logger, runID)
	runDir := filepath.Join(outputRoot, fmt.Sprintf("OSS_%d", time.Now().UnixMilli()))
	if err := archive.EnsureDir(runDir); err != nil {
		return err
	}
	logger.Info("starting run", "manifest", manifestPath, "dependencies", len(m.Dependencies), "dir", runDir)

	metaCache, cached, err := newCache(ctx, cfg.Cache)
	if err != nil {
		return err
	}
	defer metaCache.Close()

	ua := cfg.UserAgent
	if ua == "" {
		ua = appName + "/" + buildinfo.Version
	}
	hc := httputil.NewClient(
		httputil.WithTimeout(cfg.Timeout.Duration),
		httputil.WithIdleTimeout(cfg.IdleTimeout.Duration),
		httputil.WithUserAgent(ua),
		httputil.WithRetries(cfg.Retries),
	)

	npmOpts := []npm.Option{npm.WithHTTPClient(hc), npm.WithURLTemplate(cfg.Registry)}
	if cached {
		npmOpts = append(npmOpts, npm.WithCache(metaCache, cfg.Cache.TTL.Duration))
	}

	stats := &runStats{}
	defer stats.register()()

	coord := pipeline.New(npm.NewClient(npmOpts...), archive.NewFetcher(archive.WithHTTPClient(hc)), pipeline.Options{
		OutputDir:   runDir,
		Concurrency: cfg.Concurrency,
		RunID:       runID,
		Logger:      logger,
	})

	runCtx := ctx
	if d := cfg.RunTimeout.Duration; d > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	prog := newProgress(logger)
	outcome, runErr := coord.Run(runCtx, m.Dependencies)
	if outcome == nil {
		return runErr
	}
	if errors.Is(runErr, context.DeadlineExceeded) && ctx.Err() == nil {
		runErr = errs.Wrap(errs.ErrCodeCancelled, runErr, "run stopped after %s", cfg.RunTimeout.Duration)
	}
	prog.done("processed dependencies", "ok", len(outcome.Records), "failed", len(outcome.Failures))

	if cfg.Sort {
		inventory.Sort(outcome.Records)
	}

	inventoryPath := filepath.Join(runDir, inventory.FileName)
	file := &sink.FileSink{Path: inventoryPath, Format: format}
	if err := file.Write(ctx, outcome); err != nil {
		return err
	}
	logger.Debug("wrote inventory", "path", inventoryPath, "records", len(outcome.Records))

	mongoErr := storeRecords(ctx, outcome, cfg.Mongo)

	printSummary(outcome, stats, runDir, inventoryPath)
	if mongoErr != nil {
		printError("MongoDB: %s", errs.UserMessage(mongoErr))
		if runErr == nil {
			return mongoErr
		}
	}
	return runErr
}

// storeRecords archives the outcome in MongoDB when a URI is configured. It
// runs after the inventory file is written, and still runs after an
// interrupt so a partial run is archived too.
func storeRecords(ctx context.Context, o *inventory.Outcome, mc config.Mongo) error {
	if mc.URI == "" {
		return nil
	}

	mctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), mongoTimeout)
	defer cancel()

	spin := newSpinner(mctx, "Storing records in MongoDB")
	spin.Start()
	defer spin.Stop()

	ms, err := sink.NewMongoSink(mctx, sink.MongoConfig{URI: mc.URI, Database: mc.Database, Collection: mc.Collection})
	if err == nil {
		defer ms.Close(mctx)
		err = ms.Write(mctx, o)
	}
	if err != nil && spin.Cancelled() {
		return errs.Wrap(errs.ErrCodeOutput, err, "MongoDB did not respond within %s", mongoTimeout)
	}
	return err
}
