package registry

//go:generate go run ../../cmd/gen-functions --registry functions.go --hostlib ../../shaders/lib/ferrum.hostlib

import (
	"fmt"
	"sort"
	"strings"
)

// OperationID identifies one kernel entry point. IDs are contiguous in
// [0, Len()) and never change for the lifetime of a Registry.
type OperationID int

// Registry maps kernel entry-point names to stable operation IDs.
//
// The engine treats a Registry as a read-only lookup service: it is
// populated once at construction and queried concurrently without locking.
type Registry interface {
	// Lookup returns the ID registered for name.
	Lookup(name string) (OperationID, bool)

	// Name returns the entry-point name for id, or "" if id is out of range.
	Name(id OperationID) string

	// Len returns the number of registered operations.
	Len() int
}

// Table is an immutable Registry backed by a sorted name list.
type Table struct {
	names []string
	ids   map[string]OperationID
}

// NewTable creates a Table from names. IDs are assigned in lexical order so
// that the same set of names always yields the same IDs.
func NewTable(names []string) (*Table, error) {
	sorted := make([]string, len(names))
	copy(sorted, names)
	sort.Strings(sorted)

	ids := make(map[string]OperationID, len(sorted))
	for i, name := range sorted {
		if name == "" {
			return nil, fmt.Errorf("empty operation name at index %d", i)
		}
		if _, dup := ids[name]; dup {
			return nil, fmt.Errorf("duplicate operation name: %s", name)
		}
		ids[name] = OperationID(i)
	}
	return &Table{names: sorted, ids: ids}, nil
}

var defaultTable = mustTable(functionNames[:])

func mustTable(names []string) *Table {
	t, err := NewTable(names)
	if err != nil {
		panic(err)
	}
	return t
}

// Default returns the registry of every kernel shipped in the ferrum module.
func Default() *Table {
	return defaultTable
}

// Lookup returns the ID registered for name.
func (t *Table) Lookup(name string) (OperationID, bool) {
	id, ok := t.ids[name]
	return id, ok
}

// Name returns the entry-point name for id.
func (t *Table) Name(id OperationID) string {
	if id < 0 || int(id) >= len(t.names) {
		return ""
	}
	return t.names[id]
}

// Len returns the number of registered operations.
func (t *Table) Len() int {
	return len(t.names)
}

// Names returns the registered names in ID order.
func (t *Table) Names() []string {
	out := make([]string, len(t.names))
	copy(out, t.names)
	return out
}

// WithPrefix returns the names that start with prefix, in ID order.
func (t *Table) WithPrefix(prefix string) []string {
	var out []string
	for _, name := range t.names {
		if strings.HasPrefix(name, prefix) {
			out = append(out, name)
		}
	}
	return out
}

// String implements fmt.Stringer.
func (id OperationID) String() string {
	if name := defaultTable.Name(id); name != "" {
		return name
	}
	return fmt.Sprintf("OperationID(%d)", int(id))
}
