// Package archive downloads package tarballs into a run directory.
//
// A [Fetcher] streams each archive to a temporary file next to its final
// destination and renames it only after the whole body has been copied, so
// the run directory never contains a truncated archive under its final name.
// Non-success responses abort before any file is created.
//
// File names are derived with [FileName], which flattens the scope separator
// of scoped npm packages:
//
//	archive.FileName("@babel/core", "7.24.0", "tgz") // "@babel_core-7.24.0.tgz"
package archive
