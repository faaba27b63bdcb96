package normup

import (
	"fmt"
	"sort"
)

// Payload is a raw, unvalidated attribute assignment keyed by logical name
type Payload map[string]any

// FieldSet holds the two column maps handed to the storage engine
type FieldSet struct {
	Insert *FieldMap
	Update *FieldMap
}

type upsertOptions struct {
	strict   *bool
	fields   []string
	conflict []string
	defaults bool
	noHooks  bool
}

// UpsertOption customizes a single resolve or upsert call
type UpsertOption func(*upsertOptions)

// WithStrict fails on payload keys missing from the schema instead of ignoring them
func WithStrict(strict bool) UpsertOption {
	return func(o *upsertOptions) { o.strict = &strict }
}

// WithFields limits the update map to the named attributes; the insert map is unaffected
func WithFields(names ...string) UpsertOption {
	return func(o *upsertOptions) { o.fields = append(o.fields, names...) }
}

// WithConflictFields picks the attributes the storage engine detects conflicts on
func WithConflictFields(names ...string) UpsertOption {
	return func(o *upsertOptions) { o.conflict = append(o.conflict, names...) }
}

// WithDefaults adds defaults of absent attributes to the insert map
func WithDefaults() UpsertOption {
	return func(o *upsertOptions) { o.defaults = true }
}

// WithoutHooks skips the model's before/after upsert hooks
func WithoutHooks() UpsertOption {
	return func(o *upsertOptions) { o.noHooks = true }
}

func collectOptions(opts []UpsertOption) upsertOptions {
	var o upsertOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Resolve turns a raw payload into the insert and update maps.
// No record validation runs here.
func (m *Model) Resolve(payload Payload, opts ...UpsertOption) (FieldSet, error) {
	return m.resolve(payload, collectOptions(opts))
}

func (m *Model) resolve(payload Payload, o upsertOptions) (FieldSet, error) {
	strict := m.isStrict()
	if o.strict != nil {
		strict = *o.strict
	}
	if strict {
		keys := make([]string, 0, len(payload))
		for k := range payload {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if _, ok := m.schema.Lookup(k); !ok {
				return FieldSet{}, &ORMError{Code: ErrCodeUnknownAttribute, Message: fmt.Sprintf("unknown attribute %q on model %s", k, m.name)}
			}
		}
	}

	rec := newRecord()
	for _, a := range m.schema.attrs {
		v, ok := payload[a.Name]
		if !ok {
			continue
		}
		if err := Apply(rec, a, v); err != nil {
			return FieldSet{}, err
		}
	}

	var updatable map[string]bool
	if o.fields != nil {
		updatable = make(map[string]bool, len(o.fields))
		for _, f := range o.fields {
			updatable[f] = true
		}
	}
	set := FieldSet{Insert: NewFieldMap(), Update: NewFieldMap()}
	for _, a := range m.schema.attrs {
		if a.IsVirtual() || !rec.Has(a.Name) {
			continue
		}
		v := rec.Get(a.Name)
		set.Insert.Set(a.Column(), v)
		if m.timestamps.Enabled && a.Name == m.timestamps.CreatedAt {
			continue
		}
		if updatable == nil || updatable[a.Name] {
			set.Update.Set(a.Column(), v)
		}
	}
	if o.defaults {
		for _, a := range m.schema.attrs {
			if a.IsVirtual() || !a.HasDefault() || rec.Has(a.Name) || m.timestamps.isTimestamp(a.Name) {
				continue
			}
			set.Insert.Set(a.Column(), a.DefaultValue())
		}
	}
	stampTimestamps(m.timestamps, m.schema, m.db.clock(), set.Insert, set.Update)

	m.db.logger.Debug("upsert fields resolved",
		Field{Key: "model", Value: m.name},
		Field{Key: "insert", Value: set.Insert.Keys()},
		Field{Key: "update", Value: set.Update.Keys()},
	)
	return set, nil
}
