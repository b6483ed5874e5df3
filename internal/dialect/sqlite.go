package dialect

import (
	"fmt"
	"strings"

	"github.com/example/karyoview/internal/schema"
)

// SQLite is the embedded file-based dialect: no native enum type, no
// batched ALTER TABLE, snapshots by copying the store file.
type SQLite struct{}

// Name identifies the dialect.
func (SQLite) Name() string { return "sqlite" }

// ColumnDDL renders one column definition in SQLite syntax. Enum columns
// are rewritten as a bounded text type sized to the longest literal, with
// the trailing constraint suffix preserved.
func (d SQLite) ColumnDDL(col schema.Column) (string, error) {
	if col.AutoIncrement {
		if col.Kind != schema.Integer {
			return "", &UnsupportedTypeError{Dialect: d.Name(), Column: col.Name, Kind: col.Kind, Reason: "auto-increment requires an integer column"}
		}
		// SQLite ties AUTOINCREMENT to INTEGER PRIMARY KEY.
		return fmt.Sprintf("%s INTEGER PRIMARY KEY AUTOINCREMENT", d.QuoteIdentifier(col.Name)), nil
	}

	var typ string
	switch col.Kind {
	case schema.Integer:
		typ = "INTEGER"
	case schema.Varchar:
		typ = fmt.Sprintf("VARCHAR(%d)", col.Length)
	case schema.Boolean:
		typ = "BOOLEAN"
	case schema.Text:
		typ = "TEXT"
	case schema.Timestamp:
		typ = "TIMESTAMP"
	case schema.DateTime:
		typ = "DATETIME"
	case schema.Enum:
		if len(col.Values) == 0 {
			return "", &UnsupportedTypeError{Dialect: d.Name(), Column: col.Name, Kind: col.Kind, Reason: "enum declared without values"}
		}
		typ = fmt.Sprintf("VARCHAR(%d)", col.MaxValueLength())
	default:
		return "", &UnsupportedTypeError{Dialect: d.Name(), Column: col.Name, Kind: col.Kind, Reason: "unknown kind"}
	}

	parts := []string{d.QuoteIdentifier(col.Name), typ}
	if col.NotNull {
		parts = append(parts, "NOT NULL")
	}
	if col.Default != "" {
		parts = append(parts, "DEFAULT "+defaultLiteral(col))
	}
	if col.Unique {
		parts = append(parts, "UNIQUE")
	}
	if col.PrimaryKey {
		parts = append(parts, "PRIMARY KEY")
	}
	return strings.Join(parts, " "), nil
}

// AutoIncrementClause is the SQLite keyword for database-assigned ids.
func (SQLite) AutoIncrementClause() string { return "AUTOINCREMENT" }

// LastInsertIDExpr is the SQLite function returning the last assigned id.
func (SQLite) LastInsertIDExpr() string { return "last_insert_rowid()" }

// CurrentTimestampExpr is the SQLite current-time expression.
func (SQLite) CurrentTimestampExpr() string { return "CURRENT_TIMESTAMP" }

// UpsertSQL builds an INSERT OR REPLACE statement.
func (d SQLite) UpsertSQL(table string, columns []string) string {
	return fmt.Sprintf("INSERT OR REPLACE INTO %s (%s) VALUES (%s)",
		d.QuoteIdentifier(table),
		joinQuoted(d, columns),
		placeholders(len(columns)))
}

// RenameTableSQL builds the SQLite table-rename statement.
func (d SQLite) RenameTableSQL(old, new string) string {
	return fmt.Sprintf("ALTER TABLE %s RENAME TO %s", d.QuoteIdentifier(old), d.QuoteIdentifier(new))
}

// QuoteIdentifier double-quotes a name.
func (SQLite) QuoteIdentifier(name string) string { return `"` + name + `"` }

// SupportsBatchAlter reports that SQLite only accepts one ADD COLUMN per
// ALTER TABLE statement.
func (SQLite) SupportsBatchAlter() bool { return false }

// defaultLiteral renders a column's default value, quoting string-like
// kinds and leaving numeric kinds raw.
func defaultLiteral(col schema.Column) string {
	switch col.Kind {
	case schema.Integer, schema.Boolean:
		return col.Default
	default:
		return "'" + col.Default + "'"
	}
}

// joinQuoted joins quoted column names with commas.
func joinQuoted(d Dialect, columns []string) string {
	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = d.QuoteIdentifier(c)
	}
	return strings.Join(quoted, ", ")
}

// placeholders returns n comma-separated ? placeholders.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("?, ", n-1) + "?"
}
