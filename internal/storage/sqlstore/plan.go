package sqlstore

import (
	"fmt"
	"sort"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"cqlmapper/internal/schema"
	"cqlmapper/internal/sqlutil"
	"cqlmapper/internal/storage"
)

// SQLQuery is a planned statement and its positional arguments.
type SQLQuery struct {
	SQL  string
	Args []any
}

// PlanUpsert builds the statement for a keyed write. Only the supplied
// columns are touched on an existing row, so writes to disjoint columns of
// the same row merge instead of replacing each other.
func PlanUpsert(s *schema.Schema, w storage.Write) (SQLQuery, error) {
	if err := validateKey(s, w.Key); err != nil {
		return SQLQuery{}, err
	}

	var names []string
	for name := range w.Columns {
		if !s.Has(name) {
			return SQLQuery{}, fmt.Errorf("table %s has no column %q", s.Table(), name)
		}
		if s.IsPrimaryKey(name) {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	columns := make([]string, 0, len(w.Key)+len(names))
	values := make([]any, 0, len(w.Key)+len(names))
	for _, name := range s.PrimaryKey() {
		v, _ := w.Key.Value(name)
		col, _ := s.Column(name)
		columns = append(columns, sqlutil.QuoteIdentifier(name))
		values = append(values, encodeValue(col.Type, v))
	}
	assignments := make([]string, 0, len(names))
	for _, name := range names {
		col, _ := s.Column(name)
		quoted := sqlutil.QuoteIdentifier(name)
		columns = append(columns, quoted)
		values = append(values, encodeValue(col.Type, w.Columns[name]))
		assignments = append(assignments, fmt.Sprintf("%s = VALUES(%s)", quoted, quoted))
	}

	builder := sq.Insert(sqlutil.QuoteIdentifier(s.Table())).
		Columns(columns...).
		Values(values...).
		PlaceholderFormat(sq.Question)
	if len(assignments) == 0 {
		builder = builder.Options("IGNORE")
	} else {
		builder = builder.Suffix("ON DUPLICATE KEY UPDATE " + strings.Join(assignments, ", "))
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return SQLQuery{}, err
	}
	return SQLQuery{SQL: query, Args: args}, nil
}

// PlanSelect builds the statement reading every column of one row by key.
func PlanSelect(s *schema.Schema, key storage.RowKey) (SQLQuery, error) {
	if err := validateKey(s, key); err != nil {
		return SQLQuery{}, err
	}

	columns := s.Columns()
	quoted := make([]string, len(columns))
	for i, col := range columns {
		quoted[i] = sqlutil.QuoteIdentifier(col.Name)
	}
	where := sq.Eq{}
	for _, part := range key {
		col, _ := s.Column(part.Column)
		where[sqlutil.QuoteIdentifier(part.Column)] = encodeValue(col.Type, part.Value)
	}

	query, args, err := sq.Select(quoted...).
		From(sqlutil.QuoteIdentifier(s.Table())).
		Where(where).
		Limit(1).
		PlaceholderFormat(sq.Question).
		ToSql()
	if err != nil {
		return SQLQuery{}, err
	}
	return SQLQuery{SQL: query, Args: args}, nil
}

// PlanCreateTable builds the DDL for s. Columns marked Index get a secondary index.
func PlanCreateTable(s *schema.Schema) SQLQuery {
	var defs []string
	for _, col := range s.Columns() {
		def := fmt.Sprintf("%s %s", sqlutil.QuoteIdentifier(col.Name), columnType(col))
		if col.PrimaryKey {
			def += " NOT NULL"
		}
		defs = append(defs, def)
	}
	defs = append(defs, fmt.Sprintf("PRIMARY KEY (%s)",
		strings.Join(sqlutil.QuoteIdentifiers(s.PrimaryKey()), ", ")))
	for _, col := range s.Columns() {
		if col.Index && !col.PrimaryKey {
			defs = append(defs, fmt.Sprintf("KEY %s (%s)",
				sqlutil.QuoteIdentifier(sqlutil.IndexName(s.Table(), col.Name)),
				sqlutil.QuoteIdentifier(col.Name)))
		}
	}
	return SQLQuery{SQL: fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)",
		sqlutil.QuoteIdentifier(s.Table()), strings.Join(defs, ", "))}
}

// PlanDropTable builds the DDL dropping table.
func PlanDropTable(table string) SQLQuery {
	return SQLQuery{SQL: "DROP TABLE IF EXISTS " + sqlutil.QuoteIdentifier(table)}
}

func columnType(col schema.Column) string {
	switch col.Type {
	case schema.TypeUUID:
		return "CHAR(36)"
	case schema.TypeText:
		if col.PrimaryKey || col.Index {
			return "VARCHAR(255)"
		}
		return "TEXT"
	case schema.TypeInt:
		return "BIGINT"
	case schema.TypeFloat:
		return "DOUBLE"
	case schema.TypeBool:
		return "BOOLEAN"
	case schema.TypeTimestamp:
		return "DATETIME(6)"
	default:
		return "TEXT"
	}
}

func encodeValue(t schema.Type, v any) any {
	if id, ok := v.(uuid.UUID); ok && t == schema.TypeUUID {
		return id.String()
	}
	return v
}

func validateKey(s *schema.Schema, key storage.RowKey) error {
	pk := s.PrimaryKey()
	if len(key) != len(pk) {
		return fmt.Errorf("row key %s does not match primary key (%s)", key, strings.Join(pk, ", "))
	}
	for _, name := range pk {
		if v, ok := key.Value(name); !ok || v == nil {
			return fmt.Errorf("missing primary key column %q in row key", name)
		}
	}
	return nil
}
