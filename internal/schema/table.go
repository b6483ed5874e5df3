package schema

// Table declares a table: its name and the ordered set of columns it must
// carry. Column order is the declaration order and decides the order in
// which missing columns are added, but reconciliation matches columns by
// name only.
type Table struct {
	Name    string
	Columns []Column
}

// NewTable builds a table definition from an ordered column list.
func NewTable(name string, columns ...Column) Table {
	return Table{Name: name, Columns: columns}
}

// Column returns the declared column with the given name.
func (t Table) Column(name string) (Column, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// ColumnNames returns the declared column names in declaration order.
func (t Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// WithName returns a copy of the table definition under a different name.
// Migration steps use it to create the new shape of a table under a
// temporary name before swapping it into place.
func (t Table) WithName(name string) Table {
	copied := Table{Name: name, Columns: make([]Column, len(t.Columns))}
	copy(copied.Columns, t.Columns)
	return copied
}
