package normup

import (
	"context"
	"reflect"
	"strconv"
	"strings"
	"time"

	core "github.com/kintsdev/normup/internal/core"
)

// DefineStruct registers a model whose attributes come from the `db` and
// `norm` tags of T. Logical names are the Go field names. Fields named
// CreatedAt/UpdatedAt enable timestamps unless an option says otherwise.
func DefineStruct[T any](db *DB, opts ...ModelOption) (*Model, error) {
	var zero T
	typ := reflect.TypeOf(zero)
	for typ != nil && typ.Kind() == reflect.Ptr {
		typ = typ.Elem()
	}
	if typ == nil || typ.Kind() != reflect.Struct {
		return nil, &ORMError{Code: ErrCodeSchema, Message: "DefineStruct requires a struct type"}
	}
	specs := core.StructFields(typ)
	attrs := make([]Attribute, 0, len(specs))
	var ts TimestampConfig
	for _, fs := range specs {
		a := Attribute{
			Name:          fs.Name,
			Field:         fs.Column,
			Type:          dataTypeOf(fs.Type),
			PrimaryKey:    fs.PrimaryKey,
			AutoIncrement: fs.AutoIncrement,
			Unique:        fs.Unique,
			UniqueGroup:   fs.UniqueGroup,
			NotNull:       fs.NotNull,
		}
		if fs.HasDefault {
			a.Default = parseDefaultTag(fs.Default, fs.Type)
		}
		switch fs.Name {
		case "CreatedAt":
			ts.Enabled, ts.CreatedAt = true, fs.Name
		case "UpdatedAt":
			ts.Enabled, ts.UpdatedAt = true, fs.Name
		}
		attrs = append(attrs, a)
	}
	// timestamps detected from fields come first so caller options override them
	all := append([]ModelOption{func(c *modelConfig) { c.timestamps = &ts }}, opts...)
	m, err := newModel(db, typ.Name(), attrs, all)
	if err != nil {
		return nil, err
	}
	m.structType = typ
	return db.register(m)
}

// UpsertEntity upserts a struct-backed entity and scans the resulting row back into it.
// A zero auto-increment key, zero fields that declare a default and zero
// timestamp fields are left out of the payload.
func UpsertEntity[T any](ctx context.Context, db *DB, entity *T, opts ...UpsertOption) (bool, error) {
	if entity == nil {
		return false, &ORMError{Code: ErrCodeValidation, Message: "nil entity"}
	}
	typ := reflect.TypeOf(entity).Elem()
	m, ok := db.modelForType(typ)
	if !ok {
		return false, &ORMError{Code: ErrCodeSchema, Message: "no model defined for " + typ.String()}
	}
	if bu, ok := any(entity).(BeforeUpsert); ok {
		if err := bu.BeforeUpsert(ctx); err != nil {
			return false, err
		}
	}
	payload := entityPayload(m, reflect.ValueOf(entity))
	out, err := m.Upsert(ctx, payload, opts...)
	if err != nil {
		return false, err
	}
	if err := out.Record.Scan(entity); err != nil {
		return out.Created, err
	}
	if au, ok := any(entity).(AfterUpsert); ok {
		if err := au.AfterUpsert(ctx, out.Created); err != nil {
			return out.Created, err
		}
	}
	return out.Created, nil
}

func entityPayload(m *Model, v reflect.Value) Payload {
	mapper := core.StructMapper(v.Type())
	payload := Payload{}
	for _, a := range m.schema.attrs {
		if a.IsVirtual() {
			continue
		}
		fi, ok := mapper.FieldsByColumn[strings.ToLower(a.Column())]
		if !ok {
			continue
		}
		zero := core.IsZeroField(v, fi.Index)
		if zero && (a.AutoIncrement || a.HasDefault() || m.timestamps.isTimestamp(a.Name)) {
			continue
		}
		payload[a.Name] = reflect.Indirect(v).FieldByIndex(fi.Index).Interface()
	}
	return payload
}

func dataTypeOf(t reflect.Type) DataType {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	switch t.Kind() {
	case reflect.Int8, reflect.Int16, reflect.Int32, reflect.Uint8, reflect.Uint16, reflect.Uint32:
		return TypeInteger
	case reflect.Int, reflect.Int64, reflect.Uint, reflect.Uint64:
		return TypeBigInt
	case reflect.Bool:
		return TypeBoolean
	case reflect.Float32, reflect.Float64:
		return TypeFloat
	case reflect.Struct:
		if t == reflect.TypeOf(time.Time{}) {
			return TypeDate
		}
		return TypeJSON
	case reflect.Map, reflect.Slice:
		if t.Kind() == reflect.Slice && t.Elem().Kind() == reflect.Uint8 {
			return TypeText
		}
		return TypeJSON
	}
	return TypeString
}

// parseDefaultTag turns a tag default such as now(), uuid or 42 into a value
func parseDefaultTag(raw string, t reflect.Type) any {
	switch strings.ToLower(raw) {
	case "now()", "now", "current_timestamp":
		return DefaultNow
	case "uuid", "uuidv4", "gen_random_uuid()":
		return DefaultUUIDv4
	}
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	switch t.Kind() {
	case reflect.Bool:
		if b, err := strconv.ParseBool(raw); err == nil {
			return b
		}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
			return reflect.ValueOf(n).Convert(t).Interface()
		}
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		if n, err := strconv.ParseUint(raw, 10, 64); err == nil {
			return reflect.ValueOf(n).Convert(t).Interface()
		}
	case reflect.Float32, reflect.Float64:
		if f, err := strconv.ParseFloat(raw, 64); err == nil {
			return reflect.ValueOf(f).Convert(t).Interface()
		}
	}
	return strings.Trim(raw, "'")
}
