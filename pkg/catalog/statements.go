package catalog

import (
	"fmt"
	"regexp"
	"strings"
)

var fkStatementPattern = regexp.MustCompile(
	`(?is)^\s*alter\s+table\s+(\S+)\s+add\s+foreign\s+key\s*\(([^)]*)\)\s*references\s+([^\s(]+)\s*\(([^)]*)\)\s*$`)

// ParseForeignKeyStatements parses a semicolon-separated list of
// "ALTER TABLE <fk> ADD FOREIGN KEY (<cols>) REFERENCES <pk>(<cols>)"
// statements. Blank fragments are ignored; anything else that does not match
// is an error naming the offending statement.
func ParseForeignKeyStatements(text string) ([]ForeignKey, error) {
	var fks []ForeignKey
	for i, stmt := range strings.Split(text, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		m := fkStatementPattern.FindStringSubmatch(stmt)
		if m == nil {
			return nil, fmt.Errorf("statement %d is not a foreign key definition: %q", i+1, strings.TrimSpace(stmt))
		}
		fks = append(fks, ForeignKey{
			FKEntity:  strings.TrimSpace(m[1]),
			FKColumns: normalizeColumns(m[2]),
			PKEntity:  strings.TrimSpace(m[3]),
			PKColumns: normalizeColumns(m[4]),
		})
	}
	return fks, nil
}

// FormatForeignKeyStatements renders records as one statement per line.
func FormatForeignKeyStatements(fks []ForeignKey) string {
	var b strings.Builder
	for _, fk := range fks {
		fmt.Fprintf(&b, "ALTER TABLE %s ADD FOREIGN KEY (%s) REFERENCES %s(%s);\n",
			fk.FKEntity, fk.FKColumns, fk.PKEntity, fk.PKColumns)
	}
	return b.String()
}

func normalizeColumns(cols string) string {
	parts := strings.Split(cols, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return strings.Join(parts, ", ")
}
