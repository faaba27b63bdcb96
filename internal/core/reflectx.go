package core

import (
	"reflect"
	"strings"
	"time"
)

type StructFieldInfo struct {
	Index []int
	Name  string
}

type StructMapping struct {
	FieldsByColumn map[string]StructFieldInfo
}

// FieldSpec is the parsed `db`/`norm` tag metadata of one exported struct field
type FieldSpec struct {
	Name          string // Go field name
	Column        string
	Index         []int
	Type          reflect.Type
	PrimaryKey    bool
	AutoIncrement bool
	Unique        bool
	UniqueGroup   string
	NotNull       bool
	Default       string // raw default token, e.g. now(), uuid, true
	HasDefault    bool
}

// StructMapper indexes exported fields by lower-cased column name
func StructMapper(t reflect.Type) StructMapping {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	m := StructMapping{FieldsByColumn: make(map[string]StructFieldInfo)}
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.PkgPath != "" { // unexported
			continue
		}
		m.FieldsByColumn[strings.ToLower(columnName(f))] = StructFieldInfo{Index: f.Index, Name: f.Name}
	}
	return m
}

// StructFields parses the tagged fields of a struct type in declaration order.
// Fields tagged norm:"-" (or the legacy orm tag) are skipped.
func StructFields(t reflect.Type) []FieldSpec {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil
	}
	out := make([]FieldSpec, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.PkgPath != "" {
			continue
		}
		tag := normTag(f)
		if tag == "-" || strings.Contains(strings.ToLower(tag), "ignore") {
			continue
		}
		fs := FieldSpec{Name: f.Name, Column: columnName(f), Index: f.Index, Type: f.Type}
		if tag != "" {
			for _, p := range strings.Split(tag, ",") {
				p = strings.TrimSpace(p)
				switch {
				case p == "primary_key":
					fs.PrimaryKey = true
				case p == "auto_increment":
					fs.AutoIncrement = true
				case p == "unique":
					fs.Unique = true
				case strings.HasPrefix(p, "unique:"):
					fs.UniqueGroup = strings.TrimPrefix(p, "unique:")
				case p == "not_null":
					fs.NotNull = true
				case strings.HasPrefix(p, "default:"):
					fs.Default = strings.TrimPrefix(p, "default:")
					fs.HasDefault = true
				}
			}
		}
		out = append(out, fs)
	}
	return out
}

// normTag prefers the `norm` tag and falls back to the legacy `orm`
func normTag(f reflect.StructField) string {
	if t := f.Tag.Get("norm"); t != "" {
		return t
	}
	return f.Tag.Get("orm")
}

func columnName(f reflect.StructField) string {
	if col := f.Tag.Get("db"); col != "" {
		return col
	}
	return ToSnakeCase(f.Name)
}

func SetFieldByIndex(v reflect.Value, index []int, value any) {
	// ensure addressable
	for v.Kind() == reflect.Ptr {
		if v.IsNil() {
			v.Set(reflect.New(v.Type().Elem()))
		}
		v = v.Elem()
	}
	fv := v.FieldByIndex(index)
	if !fv.IsValid() || !fv.CanSet() {
		return
	}
	if value == nil {
		fv.Set(reflect.Zero(fv.Type()))
		return
	}
	val := reflect.ValueOf(value)
	if fv.Type() == reflect.TypeOf(time.Time{}) {
		switch t := value.(type) {
		case time.Time:
			fv.Set(reflect.ValueOf(t))
		case string:
			if parsed, err := time.Parse(time.RFC3339Nano, t); err == nil {
				fv.Set(reflect.ValueOf(parsed))
			}
		}
		return
	}
	if val.Type().AssignableTo(fv.Type()) {
		fv.Set(val)
		return
	}
	// []byte from text columns into string fields
	if b, ok := value.([]byte); ok && fv.Kind() == reflect.String {
		fv.SetString(string(b))
		return
	}
	// numeric <-> string conversions are skipped: int -> string yields a rune
	if val.Type().ConvertibleTo(fv.Type()) && (val.Kind() == reflect.String) == (fv.Kind() == reflect.String) {
		fv.Set(val.Convert(fv.Type()))
		return
	}
	// handle pointer targets
	if fv.Kind() == reflect.Ptr {
		elem := fv.Type().Elem()
		p := reflect.New(elem)
		switch {
		case val.Type().AssignableTo(elem):
			p.Elem().Set(val)
		case val.Type().ConvertibleTo(elem):
			p.Elem().Set(val.Convert(elem))
		default:
			return
		}
		fv.Set(p)
	}
}

// IsZeroField reports whether the field at index holds its zero value
func IsZeroField(v reflect.Value, index []int) bool {
	for v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return true
		}
		v = v.Elem()
	}
	return v.FieldByIndex(index).IsZero()
}

func ToSnakeCase(s string) string {
	var out []rune
	for i, r := range s {
		if i > 0 && r >= 'A' && r <= 'Z' {
			out = append(out, '_', r+('a'-'A'))
		} else {
			if r >= 'A' && r <= 'Z' {
				out = append(out, r+('a'-'A'))
			} else {
				out = append(out, r)
			}
		}
	}
	return string(out)
}
