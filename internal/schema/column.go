package schema

// Kind enumerates the dialect-neutral column kinds the setup tool can
// describe. Rendering a Kind into engine-specific DDL is the dialect
// adapter's job; this package only carries the description.
type Kind int

const (
	Integer Kind = iota
	Varchar
	Boolean
	Text
	Timestamp
	DateTime
	Enum
)

// String returns the neutral name of the kind, used in error messages.
func (k Kind) String() string {
	switch k {
	case Integer:
		return "integer"
	case Varchar:
		return "varchar"
	case Boolean:
		return "boolean"
	case Text:
		return "text"
	case Timestamp:
		return "timestamp"
	case DateTime:
		return "datetime"
	case Enum:
		return "enum"
	default:
		return "unknown"
	}
}

// Column describes one column in dialect-neutral terms: a kind plus
// composable modifiers. Columns are plain values; table definitions are
// built once at startup and never mutated afterwards.
type Column struct {
	Name          string
	Kind          Kind
	Length        int      // Varchar only
	Values        []string // Enum only
	NotNull       bool
	Unique        bool
	PrimaryKey    bool
	AutoIncrement bool
	Default       string // literal default value, quoted per kind by the dialect
}

// Int declares an integer column.
func Int(name string) Column {
	return Column{Name: name, Kind: Integer}
}

// VarChar declares a bounded text column.
func VarChar(name string, length int) Column {
	return Column{Name: name, Kind: Varchar, Length: length}
}

// Bool declares a boolean column.
func Bool(name string) Column {
	return Column{Name: name, Kind: Boolean}
}

// TextCol declares an unbounded text column.
func TextCol(name string) Column {
	return Column{Name: name, Kind: Text}
}

// TimestampCol declares a timestamp column.
func TimestampCol(name string) Column {
	return Column{Name: name, Kind: Timestamp}
}

// DateTimeCol declares a datetime column.
func DateTimeCol(name string) Column {
	return Column{Name: name, Kind: DateTime}
}

// EnumCol declares an enumerated column over the given literals.
func EnumCol(name string, values ...string) Column {
	return Column{Name: name, Kind: Enum, Values: values}
}

// WithNotNull marks the column NOT NULL.
func (c Column) WithNotNull() Column {
	c.NotNull = true
	return c
}

// WithUnique marks the column UNIQUE.
func (c Column) WithUnique() Column {
	c.Unique = true
	return c
}

// WithPrimaryKey marks the column as the table's primary key.
func (c Column) WithPrimaryKey() Column {
	c.PrimaryKey = true
	return c
}

// WithAutoIncrement marks the column as database-assigned. Only meaningful
// on integer columns; dialects reject it elsewhere.
func (c Column) WithAutoIncrement() Column {
	c.AutoIncrement = true
	return c
}

// WithDefault sets a literal default value for the column.
func (c Column) WithDefault(value string) Column {
	c.Default = value
	return c
}

// MaxValueLength returns the length of the longest enum literal. Dialects
// without native enum support size their replacement text type with it.
func (c Column) MaxValueLength() int {
	max := 0
	for _, v := range c.Values {
		if len(v) > max {
			max = len(v)
		}
	}
	return max
}
