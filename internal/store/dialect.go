package store

import (
	"encoding/json"
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"
)

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidateIdent checks that name can be interpolated into SQL as a table
// or document field name.
func ValidateIdent(name string) bool {
	return identRe.MatchString(name)
}

// Dialect captures the SQL differences between supported engines.
type Dialect interface {
	// Name is also the migrations directory.
	Name() string
	DriverName() string
	GooseDialect() string
	Pragmas() []string
	// Rebind rewrites ? placeholders into the engine's native form.
	Rebind(query string) string
	CreateDocumentTable(table string) string
	// SetFields returns the expression assigned to data that replaces the
	// given top-level keys, and its arguments. Keys must be valid
	// identifiers; a JSON null value is stored as null.
	SetFields(fields map[string]json.RawMessage) (string, []any)
	// FieldEquals compares a top-level document field with one parameter.
	FieldEquals(field string) string
	FieldArg(v any) any
	// MaxParams bounds the number of placeholders per statement.
	MaxParams() int
}

// DialectFor returns the dialect registered for driver.
func DialectFor(driver string) (Dialect, error) {
	switch strings.ToLower(driver) {
	case "", "sqlite", "sqlite3":
		return sqliteDialect{}, nil
	case "postgres", "pgx":
		return postgresDialect{}, nil
	default:
		return nil, fmt.Errorf("unsupported driver %q", driver)
	}
}

type sqliteDialect struct{}

func (sqliteDialect) Name() string         { return "sqlite" }
func (sqliteDialect) DriverName() string   { return "sqlite" }
func (sqliteDialect) GooseDialect() string { return "sqlite3" }

func (sqliteDialect) Pragmas() []string {
	return []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
}

func (sqliteDialect) Rebind(query string) string { return query }

func (sqliteDialect) CreateDocumentTable(table string) string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS "%s" (id TEXT PRIMARY KEY, data TEXT NOT NULL)`, table)
}

func (sqliteDialect) SetFields(fields map[string]json.RawMessage) (string, []any) {
	if len(fields) == 0 {
		return "data", nil
	}
	var b strings.Builder
	args := make([]any, 0, len(fields))
	b.WriteString("json_set(data")
	for _, k := range sortedKeys(fields) {
		fmt.Fprintf(&b, ", '$.%s', json(?)", k)
		args = append(args, string(fields[k]))
	}
	b.WriteString(")")
	return b.String(), args
}

func (sqliteDialect) FieldEquals(field string) string {
	return fmt.Sprintf("json_extract(data, '$.%s') = ?", field)
}

func (sqliteDialect) FieldArg(v any) any { return v }

func (sqliteDialect) MaxParams() int { return 500 }

type postgresDialect struct{}

func (postgresDialect) Name() string         { return "postgres" }
func (postgresDialect) DriverName() string   { return "pgx" }
func (postgresDialect) GooseDialect() string { return "pgx" }
func (postgresDialect) Pragmas() []string    { return nil }

func (postgresDialect) Rebind(query string) string {
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (postgresDialect) CreateDocumentTable(table string) string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS "%s" (id TEXT PRIMARY KEY, data JSONB NOT NULL)`, table)
}

// SetFields relies on jsonb || replacing top-level keys as a whole.
func (postgresDialect) SetFields(fields map[string]json.RawMessage) (string, []any) {
	if len(fields) == 0 {
		return "data", nil
	}
	obj, _ := json.Marshal(fields)
	return "data || ?::jsonb", []any{string(obj)}
}

func (postgresDialect) FieldEquals(field string) string {
	return fmt.Sprintf("data->>'%s' = ?", field)
}

func (postgresDialect) FieldArg(v any) any { return fmt.Sprint(v) }

func (postgresDialect) MaxParams() int { return 1000 }

func checkIdent(name string, err error) error {
	if !ValidateIdent(name) {
		return fmt.Errorf("%q: %w", name, err)
	}
	return nil
}

func sortedKeys(m map[string]json.RawMessage) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
