package inventory

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"reflect"
	"slices"
	"strings"

	errs "github.com/matzehuels/ossinventory/pkg/errors"
)

// Format selects the inventory serialization.
type Format string

const (
	FormatCSV    Format = "csv"
	FormatLegacy Format = "legacy"
)

// Formats lists the supported formats.
var Formats = []Format{FormatCSV, FormatLegacy}

// ParseFormat validates a format name. The empty string selects FormatCSV.
func ParseFormat(s string) (Format, error) {
	if s == "" {
		return FormatCSV, nil
	}
	f := Format(strings.ToLower(s))
	if !slices.Contains(Formats, f) {
		return "", errs.New(errs.ErrCodeInvalidInput, "unknown format %q (use csv or legacy)", s)
	}
	return f, nil
}

// Write serializes outcome to w.
func Write(w io.Writer, o *Outcome, format Format) error {
	if o == nil || o.Total == 0 {
		return nil
	}
	switch format {
	case FormatCSV, "":
		return writeCSV(w, o.Records)
	case FormatLegacy:
		return writeLegacy(w, o.Records)
	default:
		return errs.New(errs.ErrCodeInvalidInput, "unknown format %q", format)
	}
}

// WriteFile creates or truncates path and writes outcome to it. Failures are
// OUTPUT_FAILED.
func WriteFile(path string, o *Outcome, format Format) error {
	f, err := os.Create(path)
	if err != nil {
		return errs.Wrap(errs.ErrCodeOutput, err, "create inventory")
	}
	if err := Write(f, o, format); err != nil {
		f.Close()
		return errs.Wrap(errs.ErrCodeOutput, err, "write inventory")
	}
	if err := f.Close(); err != nil {
		return errs.Wrap(errs.ErrCodeOutput, err, "close inventory")
	}
	return nil
}

func writeCSV(w io.Writer, records []Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Fields()); err != nil {
		return err
	}
	for _, r := range records {
		if err := cw.Write(r.Values()); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func writeLegacy(w io.Writer, records []Record) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "%s \n", strings.Join(Fields(), ", "))
	for _, r := range records {
		for _, v := range r.Values() {
			bw.WriteString(v)
			bw.WriteByte(',')
		}
		bw.WriteByte('\n')
	}
	return bw.Flush()
}

// Read parses a FormatCSV inventory. Columns are matched by header name, so
// column order and unknown extra columns are tolerated. An empty input
// yields no records.
func Read(r io.Reader) ([]Record, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, errs.Wrap(errs.ErrCodeInvalidInput, err, "read inventory header")
	}

	pos := map[string]int{}
	for i, name := range header {
		pos[strings.TrimSpace(name)] = i
	}
	cols := columns()
	for _, c := range cols {
		if _, ok := pos[c.name]; !ok {
			return nil, errs.New(errs.ErrCodeInvalidInput, "inventory is missing column %q", c.name)
		}
	}

	var records []Record
	for {
		row, err := cr.Read()
		if err == io.EOF {
			return records, nil
		}
		if err != nil {
			return nil, errs.Wrap(errs.ErrCodeInvalidInput, err, "read inventory")
		}
		var rec Record
		v := reflect.ValueOf(&rec).Elem()
		for _, c := range cols {
			v.Field(c.index).SetString(row[pos[c.name]])
		}
		records = append(records, rec)
	}
}

// ReadFile opens and parses the inventory at path.
func ReadFile(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errs.Wrap(errs.ErrCodeInvalidInput, err, "open inventory")
	}
	defer f.Close()
	return Read(f)
}
