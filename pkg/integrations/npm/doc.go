// Package npm resolves package versions against the npm registry.
//
// # Overview
//
// The client fetches a single version document from
// https://registry.npmjs.org/<package>/<version> and extracts the fields an
// inventory needs: the tarball URL from dist.tarball, the concrete version,
// the license and the homepage.
//
// # Usage
//
//	client := npm.NewClient()
//	meta, err := client.Resolve(ctx, "express", "4.18.2")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(meta.Version, meta.ArchiveURL, meta.License)
//
// Scoped names are substituted verbatim (@types/node/20.0.0), which the npm
// registry accepts.
//
// # Failures
//
// Every error returned by [Client.Resolve] carries an errors.Code:
//
//   - RESOLUTION_FAILED: transport error or non-success status, never retried
//     unless the shared HTTP client was built with retries
//   - DESERIALIZATION_FAILED: body is not JSON or lacks dist.tarball
//
// # Caching
//
// Lookups are not cached unless [WithCache] is given, so two identical
// requests perform two round trips.
package npm
