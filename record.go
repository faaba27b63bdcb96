package normup

import (
	"reflect"
	"strings"

	core "github.com/kintsdev/normup/internal/core"
)

// Record is a mutable bag of logical attribute values.
// During resolution it is the staging target handed to virtual setters;
// after dispatch it backs the hydrated Instance.
type Record struct {
	values map[string]any
	order  []string
}

func newRecord() *Record { return &Record{values: map[string]any{}} }

// Set stores value under a logical attribute name without interception
func (r *Record) Set(name string, value any) {
	if _, ok := r.values[name]; !ok {
		r.order = append(r.order, name)
	}
	r.values[name] = value
}

func (r *Record) Get(name string) any { return r.values[name] }

func (r *Record) Has(name string) bool {
	_, ok := r.values[name]
	return ok
}

// Names lists the attributes in the order they were first set
func (r *Record) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Values returns an unordered copy of the stored values
func (r *Record) Values() map[string]any {
	out := make(map[string]any, len(r.values))
	for k, v := range r.values {
		out[k] = v
	}
	return out
}

// Instance is a record hydrated from a storage row
type Instance struct {
	model *Model
	rec   *Record
}

// Model returns the model the instance belongs to
func (i *Instance) Model() *Model { return i.model }

// Get returns an attribute value, running the getter of virtual attributes
func (i *Instance) Get(name string) any {
	if a, ok := i.model.schema.Lookup(name); ok && a.IsVirtual() && a.Get != nil {
		return a.Get(i.rec)
	}
	return i.rec.Get(name)
}

// Raw returns the stored value, bypassing getters
func (i *Instance) Raw(name string) any { return i.rec.Get(name) }

func (i *Instance) Has(name string) bool { return i.rec.Has(name) }

// Values returns every physical value plus computed virtual values, keyed by logical name
func (i *Instance) Values() map[string]any {
	out := i.rec.Values()
	for _, a := range i.model.schema.attrs {
		if a.IsVirtual() && a.Get != nil {
			out[a.Name] = a.Get(i.rec)
		}
	}
	return out
}

// Scan copies physical values into a struct pointer, matching fields by db tag or snake-cased name
func (i *Instance) Scan(dst any) error {
	rv := reflect.ValueOf(dst)
	if rv.Kind() != reflect.Ptr || rv.IsNil() {
		return &ORMError{Code: ErrCodeValidation, Message: "scan destination must be a non-nil pointer"}
	}
	if rv.Elem().Kind() != reflect.Struct {
		return &ORMError{Code: ErrCodeValidation, Message: "scan destination must point to a struct"}
	}
	mapper := core.StructMapper(rv.Type())
	for _, a := range i.model.schema.attrs {
		if a.IsVirtual() || !i.rec.Has(a.Name) {
			continue
		}
		fi, ok := mapper.FieldsByColumn[strings.ToLower(a.Column())]
		if !ok {
			continue
		}
		core.SetFieldByIndex(rv, fi.Index, i.rec.Get(a.Name))
	}
	return nil
}

// hydrate maps a storage row (physical columns) back onto logical names
func (m *Model) hydrate(row Row) *Instance {
	rec := newRecord()
	for _, a := range m.schema.attrs {
		if a.IsVirtual() {
			continue
		}
		if v, ok := lookupColumn(row, a.Column()); ok {
			rec.Set(a.Name, v)
		}
	}
	return &Instance{model: m, rec: rec}
}

func lookupColumn(row Row, column string) (any, bool) {
	if v, ok := row[column]; ok {
		return v, true
	}
	for k, v := range row {
		if strings.EqualFold(k, column) {
			return v, true
		}
	}
	return nil, false
}
