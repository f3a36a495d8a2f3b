// Package inventory defines the inventory record produced for each
// successfully processed dependency and serializes a batch of them.
//
// # Columns
//
// Column names come from the `inventory` struct tags on [Record] and are
// always emitted in lexicographic order:
//
//	homepage, license, meta, package, source, version
//
// # Formats
//
// [FormatCSV] is RFC 4180 CSV and is what [Read] parses back. [FormatLegacy]
// reproduces the historical layout byte for byte: a header joined by ", "
// followed by a space, and rows where every field is followed by a comma,
// with no quoting. Values containing commas or newlines corrupt legacy rows,
// so it is only offered for consumers that already parse that layout.
//
// A batch that declared no dependencies produces an empty file. A batch with
// at least one dependency always gets a header, even when every dependency
// failed.
package inventory
