package inventory

import (
	"cmp"
	"reflect"
	"slices"
	"sync"

	errs "github.com/matzehuels/ossinventory/pkg/errors"
)

// FileName is the name of the inventory file inside a run directory.
const FileName = "oss-packages.csv"

// Record is one successfully resolved and downloaded dependency.
type Record struct {
	Package  string `inventory:"package" bson:"package" json:"package"`
	Version  string `inventory:"version" bson:"version" json:"version"`
	Source   string `inventory:"source" bson:"source" json:"source"`
	Meta     string `inventory:"meta" bson:"meta" json:"meta"`
	License  string `inventory:"license" bson:"license" json:"license"`
	Homepage string `inventory:"homepage" bson:"homepage" json:"homepage"`
}

// Failure is a dependency that produced no record.
type Failure struct {
	Package    string
	Constraint string
	Version    string // normalized lookup token
	Code       errs.Code
	Err        error
}

// Outcome is the result of one pipeline run.
type Outcome struct {
	RunID    string
	Total    int // dependencies submitted, including failed ones
	Records  []Record
	Failures []Failure
}

type column struct {
	name  string
	index int
}

var columns = sync.OnceValue(func() []column {
	t := reflect.TypeFor[Record]()
	cols := make([]column, 0, t.NumField())
	for i := range t.NumField() {
		if name := t.Field(i).Tag.Get("inventory"); name != "" {
			cols = append(cols, column{name: name, index: i})
		}
	}
	slices.SortFunc(cols, func(a, b column) int { return cmp.Compare(a.name, b.name) })
	return cols
})

// Fields returns the column names in output order.
func Fields() []string {
	cols := columns()
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.name
	}
	return names
}

// Values returns r's fields in [Fields] order.
func (r Record) Values() []string {
	v := reflect.ValueOf(r)
	cols := columns()
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = v.Field(c.index).String()
	}
	return out
}

// Sort orders records by package, then version.
func Sort(records []Record) {
	slices.SortStableFunc(records, func(a, b Record) int {
		return cmp.Or(cmp.Compare(a.Package, b.Package), cmp.Compare(a.Version, b.Version))
	})
}
