// Package manifest reads the dependency declarations of an npm package.json.
//
// Unlike a plain map decode, [Parse] keeps dependencies in the order they are
// declared in the file, which is the order the pipeline reports them in.
package manifest

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	errs "github.com/matzehuels/ossinventory/pkg/errors"
)

// FileName is the conventional manifest file name.
const FileName = "package.json"

// Dependency is one declared direct dependency.
type Dependency struct {
	Name       string
	Constraint string
	Dev        bool
}

// Manifest holds the parsed parts of a package.json.
type Manifest struct {
	Name         string
	Version      string
	Dependencies []Dependency

	// Skipped lists declarations with an empty name, an empty constraint or
	// a non-string constraint. They are never processed.
	Skipped []Dependency
}

// Options controls which sections are read.
type Options struct {
	IncludeDev bool // append devDependencies after dependencies
}

// ParseFile opens and parses the manifest at path. A missing or unreadable
// file is INVALID_INPUT; malformed content is INVALID_MANIFEST.
func ParseFile(path string, opts Options) (*Manifest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errs.Wrap(errs.ErrCodeInvalidInput, err, "open manifest")
	}
	defer f.Close()

	m, err := Parse(f, opts)
	if err != nil {
		return nil, errs.Wrap(errs.ErrCodeInvalidManifest, err, "parse %s", path)
	}
	return m, nil
}

// Parse reads a package.json document from r.
//
// Dependencies appear in declaration order. When a name is declared twice in
// the same section it keeps its first position and takes the last value.
func Parse(r io.Reader, opts Options) (*Manifest, error) {
	dec := json.NewDecoder(r)
	if err := expectDelim(dec, '{'); err != nil {
		return nil, err
	}

	m := &Manifest{}
	var deps, devDeps []entry
	for dec.More() {
		key, err := readKey(dec)
		if err != nil {
			return nil, err
		}
		switch key {
		case "name":
			err = decodeString(dec, &m.Name)
		case "version":
			err = decodeString(dec, &m.Version)
		case "dependencies":
			deps, err = readSection(dec, key)
		case "devDependencies":
			devDeps, err = readSection(dec, key)
		default:
			err = dec.Decode(new(json.RawMessage))
		}
		if err != nil {
			return nil, err
		}
	}
	if err := expectDelim(dec, '}'); err != nil {
		return nil, err
	}

	m.add(deps, false)
	if opts.IncludeDev {
		m.add(devDeps, true)
	}
	return m, nil
}

type entry struct {
	name       string
	constraint string
	ok         bool
}

func (m *Manifest) add(entries []entry, dev bool) {
	for _, e := range entries {
		d := Dependency{Name: e.name, Constraint: e.constraint, Dev: dev}
		if !e.ok || d.Name == "" || d.Constraint == "" {
			m.Skipped = append(m.Skipped, d)
			continue
		}
		m.Dependencies = append(m.Dependencies, d)
	}
}

// readSection reads a {"name": "constraint"} object preserving key order.
func readSection(dec *json.Decoder, section string) ([]entry, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if tok == nil {
		return nil, nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, fmt.Errorf("%s: expected object, got %v", section, tok)
	}

	var entries []entry
	index := map[string]int{}
	for dec.More() {
		name, err := readKey(dec)
		if err != nil {
			return nil, err
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, fmt.Errorf("%s.%s: %w", section, name, err)
		}
		e := entry{name: name}
		e.ok = json.Unmarshal(raw, &e.constraint) == nil

		if i, seen := index[name]; seen {
			entries[i] = e
			continue
		}
		index[name] = len(entries)
		entries = append(entries, e)
	}
	if err := expectDelim(dec, '}'); err != nil {
		return nil, err
	}
	return entries, nil
}

func readKey(dec *json.Decoder) (string, error) {
	tok, err := dec.Token()
	if err != nil {
		return "", err
	}
	key, ok := tok.(string)
	if !ok {
		return "", fmt.Errorf("expected object key, got %v", tok)
	}
	return key, nil
}

func decodeString(dec *json.Decoder, dst *string) error {
	var v any
	if err := dec.Decode(&v); err != nil {
		return err
	}
	if s, ok := v.(string); ok {
		*dst = s
	}
	return nil
}

func expectDelim(dec *json.Decoder, want json.Delim) error {
	tok, err := dec.Token()
	if err != nil {
		if err == io.EOF {
			return fmt.Errorf("unexpected end of document")
		}
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != want {
		return fmt.Errorf("expected %q, got %v", want, tok)
	}
	return nil
}
