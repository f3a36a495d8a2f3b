// Package pkg provides the libraries behind the ossinventory CLI.
//
// # Overview
//
// ossinventory produces an open-source inventory for an npm project: every
// direct dependency declared in package.json is resolved against the registry,
// its tarball is downloaded, and one row per dependency is written to
// oss-packages.csv. The pkg directory is organized as:
//
//  1. [manifest] - ordered package.json reader
//  2. [version] - constraint normalization
//  3. [integrations/npm] - registry metadata lookups
//  4. [archive] - tarball downloads into the run directory
//  5. [pipeline] - per-dependency orchestration with bounded concurrency
//  6. [inventory] and [sink] - record model, CSV writer, MongoDB archive
//
// Supporting packages: [httputil] (shared HTTP client, status errors,
// retries), [cache] (optional file or Redis metadata cache), [config] (TOML
// settings), [errors] (error codes), [observability] (hooks), [buildinfo].
//
// # Data Flow
//
//	package.json
//	     ↓
//	[manifest] ordered dependencies
//	     ↓
//	[pipeline] for each dependency:
//	     [version] normalize → [integrations/npm] resolve → [archive] fetch
//	     ↓
//	[inventory] outcome (records + failures)
//	     ↓
//	[sink] oss-packages.csv (and MongoDB)
//
// # Quick Start
//
//	m, err := manifest.ParseFile("package.json", manifest.Options{})
//	if err != nil {
//	    return err
//	}
//
//	hc := httputil.NewClient()
//	coord := pipeline.New(
//	    npm.NewClient(npm.WithHTTPClient(hc)),
//	    archive.NewFetcher(archive.WithHTTPClient(hc)),
//	    pipeline.Options{OutputDir: "audit/OSS_1700000000000", Concurrency: 4},
//	)
//	outcome, err := coord.Run(ctx, m.Dependencies)
//	if err != nil {
//	    return err
//	}
//	return inventory.WriteFile("audit/OSS_1700000000000/oss-packages.csv", outcome, inventory.FormatCSV)
//
// Per-dependency failures never surface as the error of Run; they are listed
// in outcome.Failures with a machine-readable code.
//
// [manifest]: https://pkg.go.dev/github.com/matzehuels/ossinventory/pkg/manifest
// [version]: https://pkg.go.dev/github.com/matzehuels/ossinventory/pkg/version
// [integrations/npm]: https://pkg.go.dev/github.com/matzehuels/ossinventory/pkg/integrations/npm
// [archive]: https://pkg.go.dev/github.com/matzehuels/ossinventory/pkg/archive
// [pipeline]: https://pkg.go.dev/github.com/matzehuels/ossinventory/pkg/pipeline
// [inventory]: https://pkg.go.dev/github.com/matzehuels/ossinventory/pkg/inventory
// [sink]: https://pkg.go.dev/github.com/matzehuels/ossinventory/pkg/sink
// [httputil]: https://pkg.go.dev/github.com/matzehuels/ossinventory/pkg/httputil
// [cache]: https://pkg.go.dev/github.com/matzehuels/ossinventory/pkg/cache
// [config]: https://pkg.go.dev/github.com/matzehuels/ossinventory/pkg/config
// [errors]: https://pkg.go.dev/github.com/matzehuels/ossinventory/pkg/errors
// [observability]: https://pkg.go.dev/github.com/matzehuels/ossinventory/pkg/observability
// [buildinfo]: https://pkg.go.dev/github.com/matzehuels/ossinventory/pkg/buildinfo
package pkg
