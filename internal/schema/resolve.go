package schema

import (
	"fmt"
	"reflect"
	"strings"
	"sync"

	"cqlmapper/internal/naming"
)

const tagName = "cql"

// Tabler lets a declaration struct choose its own table name.
type Tabler interface {
	TableName() string
}

var resolved sync.Map // reflect.Type -> *Schema

// Resolve returns the schema declared by model's struct tags. model may be a
// struct value or a pointer to one. The result is computed once per type.
//
//	type Post struct {
//		ID    uuid.UUID `cql:"id,primary_key,default=uuid"`
//		Title string    `cql:"title,required"`
//		Body  string    `cql:",index"`
//		State string    `cql:"state,default='draft'"`
//	}
func Resolve(model any) (*Schema, error) {
	rt := reflect.TypeOf(model)
	if rt == nil {
		return nil, &SchemaError{Message: "cannot resolve schema of nil"}
	}
	for rt.Kind() == reflect.Pointer {
		rt = rt.Elem()
	}
	if cached, ok := resolved.Load(rt); ok {
		return cached.(*Schema), nil
	}
	s, err := build(rt)
	if err != nil {
		return nil, err
	}
	actual, _ := resolved.LoadOrStore(rt, s)
	return actual.(*Schema), nil
}

// MustResolve is Resolve for package-level declarations; it panics on error.
func MustResolve(model any) *Schema {
	s, err := Resolve(model)
	if err != nil {
		panic(err)
	}
	return s
}

func build(rt reflect.Type) (*Schema, error) {
	if rt.Kind() != reflect.Struct {
		return nil, &SchemaError{Message: fmt.Sprintf("%s is not a struct", rt)}
	}

	table := naming.TableName(rt.Name())
	if tabler, ok := reflect.New(rt).Interface().(Tabler); ok {
		table = tabler.TableName()
	}

	var columns []Column
	fields := make(map[string][]int)
	for i := 0; i < rt.NumField(); i++ {
		field := rt.Field(i)
		if !field.IsExported() {
			continue
		}
		tag, hasTag := field.Tag.Lookup(tagName)
		if tag == "-" {
			continue
		}
		if !hasTag {
			continue
		}
		col, err := parseTag(field, tag)
		if err != nil {
			return nil, &SchemaError{Table: table, Column: field.Name, Message: err.Error()}
		}
		columns = append(columns, col)
		fields[col.Name] = field.Index
	}

	s, err := New(table, columns...)
	if err != nil {
		return nil, err
	}
	s.goType = rt
	s.fields = fields
	return s, nil
}

func parseTag(field reflect.StructField, tag string) (Column, error) {
	parts := splitTag(tag)
	col := Column{Name: strings.TrimSpace(parts[0])}
	if col.Name == "" {
		col.Name = naming.ColumnName(field.Name)
	}
	typ, ok := typeForGo(field.Type)
	if !ok {
		return Column{}, fmt.Errorf("unsupported field type %s", field.Type)
	}
	col.Type = typ

	for _, opt := range parts[1:] {
		opt = strings.TrimSpace(opt)
		key, value, _ := strings.Cut(opt, "=")
		switch key {
		case "":
		case "primary_key":
			col.PrimaryKey = true
		case "partition_key":
			col.PrimaryKey = true
			col.PartitionKey = true
		case "required":
			col.Required = true
		case "index":
			col.Index = true
		case "default":
			fn, err := parseDefault(typ, value)
			if err != nil {
				return Column{}, err
			}
			col.Default = fn
		default:
			return Column{}, fmt.Errorf("unknown tag option %q", key)
		}
	}
	return col, nil
}

func parseDefault(typ Type, raw string) (DefaultFunc, error) {
	if len(raw) >= 2 && raw[0] == '\'' && raw[len(raw)-1] == '\'' {
		v, err := typ.ParseLiteral(raw[1 : len(raw)-1])
		if err != nil {
			return nil, fmt.Errorf("invalid default literal %s: %w", raw, err)
		}
		return Literal(v), nil
	}
	fn, ok := lookupDefault(raw)
	if !ok {
		return nil, fmt.Errorf("unknown default provider %q", raw)
	}
	return fn, nil
}

// splitTag splits on commas outside single-quoted literals.
func splitTag(tag string) []string {
	var parts []string
	var cur strings.Builder
	quoted := false
	for _, r := range tag {
		switch {
		case r == '\'':
			quoted = !quoted
			cur.WriteRune(r)
		case r == ',' && !quoted:
			parts = append(parts, cur.String())
			cur.Reset()
		default:
			cur.WriteRune(r)
		}
	}
	return append(parts, cur.String())
}
