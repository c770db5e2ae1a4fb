package schema

import (
	"fmt"
	"strings"
)

// Registry is the ordered set of target columns for the currently active
// destination table. It is rebuilt wholesale when the destination table
// changes; only the aliases inside each column mutate in place.
type Registry struct {
	columns []*TargetColumn
	byName  map[string]*TargetColumn
}

// NewRegistry builds a registry from an ordered column list. Names are
// lower-cased; empty or duplicate names are rejected.
func NewRegistry(columns []*TargetColumn) (*Registry, error) {
	r := &Registry{
		columns: make([]*TargetColumn, 0, len(columns)),
		byName:  make(map[string]*TargetColumn, len(columns)),
	}
	for _, col := range columns {
		if col == nil {
			return nil, fmt.Errorf("nil target column")
		}
		name := strings.ToLower(strings.TrimSpace(col.Name))
		if name == "" {
			return nil, fmt.Errorf("target column with empty name")
		}
		if _, exists := r.byName[name]; exists {
			return nil, fmt.Errorf("duplicate target column name %q", name)
		}
		col.Name = name
		r.columns = append(r.columns, col)
		r.byName[name] = col
	}
	return r, nil
}

// Columns returns the registry's columns in declared order.
func (r *Registry) Columns() []*TargetColumn {
	return r.columns
}

// Names returns the ordered column names.
func (r *Registry) Names() []string {
	names := make([]string, len(r.columns))
	for i, col := range r.columns {
		names[i] = col.Name
	}
	return names
}

// ByName looks up a column by its canonical name.
func (r *Registry) ByName(name string) (*TargetColumn, bool) {
	col, ok := r.byName[strings.ToLower(name)]
	return col, ok
}

// Len returns the number of target columns.
func (r *Registry) Len() int {
	return len(r.columns)
}

// MergeAliases folds an alias-store partition into the columns'
// historical variations. Registry aliases stay first; partition aliases
// are appended in order if not already present. Partition keys with no
// matching column are ignored.
func (r *Registry) MergeAliases(partition map[string][]string) {
	for name, aliases := range partition {
		col, ok := r.ByName(name)
		if !ok {
			continue
		}
		for _, alias := range aliases {
			col.AddVariation(alias)
		}
	}
}
