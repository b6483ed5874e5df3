package dialect

import (
	"fmt"
	"strings"

	"github.com/example/karyoview/internal/schema"
)

// MySQL is the client/server dialect: native enum support, batched
// ALTER TABLE, snapshots via mysqldump.
type MySQL struct{}

// Name identifies the dialect.
func (MySQL) Name() string { return "mysql" }

// ColumnDDL renders one column definition in MySQL syntax.
func (d MySQL) ColumnDDL(col schema.Column) (string, error) {
	var typ string
	switch col.Kind {
	case schema.Integer:
		typ = "INT"
	case schema.Varchar:
		typ = fmt.Sprintf("VARCHAR(%d)", col.Length)
	case schema.Boolean:
		typ = "TINYINT(1)"
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
		quoted := make([]string, len(col.Values))
		for i, v := range col.Values {
			quoted[i] = "'" + v + "'"
		}
		typ = fmt.Sprintf("ENUM(%s)", strings.Join(quoted, ","))
	default:
		return "", &UnsupportedTypeError{Dialect: d.Name(), Column: col.Name, Kind: col.Kind, Reason: "unknown kind"}
	}

	if col.AutoIncrement && col.Kind != schema.Integer {
		return "", &UnsupportedTypeError{Dialect: d.Name(), Column: col.Name, Kind: col.Kind, Reason: "auto-increment requires an integer column"}
	}

	parts := []string{d.QuoteIdentifier(col.Name), typ}
	if col.NotNull {
		parts = append(parts, "NOT NULL")
	}
	if col.Default != "" {
		parts = append(parts, "DEFAULT "+defaultLiteral(col))
	}
	if col.AutoIncrement {
		parts = append(parts, d.AutoIncrementClause())
	}
	if col.Unique {
		parts = append(parts, "UNIQUE")
	}
	if col.PrimaryKey {
		parts = append(parts, "PRIMARY KEY")
	}
	return strings.Join(parts, " "), nil
}

// AutoIncrementClause is the MySQL keyword for database-assigned ids.
func (MySQL) AutoIncrementClause() string { return "AUTO_INCREMENT" }

// LastInsertIDExpr is the MySQL function returning the last assigned id.
func (MySQL) LastInsertIDExpr() string { return "LAST_INSERT_ID()" }

// CurrentTimestampExpr is the MySQL current-time expression.
func (MySQL) CurrentTimestampExpr() string { return "NOW()" }

// UpsertSQL builds a REPLACE INTO statement.
func (d MySQL) UpsertSQL(table string, columns []string) string {
	return fmt.Sprintf("REPLACE INTO %s (%s) VALUES (%s)",
		d.QuoteIdentifier(table),
		joinQuoted(d, columns),
		placeholders(len(columns)))
}

// RenameTableSQL builds the MySQL table-rename statement.
func (d MySQL) RenameTableSQL(old, new string) string {
	return fmt.Sprintf("RENAME TABLE %s TO %s", d.QuoteIdentifier(old), d.QuoteIdentifier(new))
}

// QuoteIdentifier backtick-quotes a name.
func (MySQL) QuoteIdentifier(name string) string { return "`" + name + "`" }

// SupportsBatchAlter reports that MySQL accepts several ADD COLUMN clauses
// in one ALTER TABLE.
func (MySQL) SupportsBatchAlter() bool { return true }
