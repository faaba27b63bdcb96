package normup

import (
	"context"
	"fmt"
	"reflect"

	core "github.com/kintsdev/normup/internal/core"
)

// BeforeUpsertFunc runs before resolution with the raw payload
type BeforeUpsertFunc func(ctx context.Context, payload Payload) error

// AfterUpsertFunc runs after a successful dispatch
type AfterUpsertFunc func(ctx context.Context, out *UpsertOutcome) error

// Model is an immutable model definition bound to a DB
type Model struct {
	db         *DB
	name       string
	table      string
	schema     *Schema
	timestamps TimestampConfig
	strict     *bool
	before     BeforeUpsertFunc
	after      AfterUpsertFunc
	structType reflect.Type
}

type modelConfig struct {
	table      string
	timestamps *TimestampConfig
	strict     *bool
	extra      []Attribute
	before     BeforeUpsertFunc
	after      AfterUpsertFunc
	noKey      bool
}

// ModelOption customizes a model at definition time
type ModelOption func(*modelConfig)

// WithTable overrides the default snake_case plural table name
func WithTable(name string) ModelOption { return func(c *modelConfig) { c.table = name } }

// WithTimestamps enables stamping with the given attribute names; pass "" to omit one
func WithTimestamps(createdAt, updatedAt string) ModelOption {
	return func(c *modelConfig) {
		c.timestamps = &TimestampConfig{Enabled: true, CreatedAt: createdAt, UpdatedAt: updatedAt}
	}
}

func WithoutTimestamps() ModelOption {
	return func(c *modelConfig) { c.timestamps = &TimestampConfig{} }
}

// WithModelStrict overrides the DB-wide unknown-attribute policy for one model
func WithModelStrict(strict bool) ModelOption {
	return func(c *modelConfig) { c.strict = &strict }
}

// WithAttributes appends attributes, typically virtual ones on struct-backed models
func WithAttributes(attrs ...Attribute) ModelOption {
	return func(c *modelConfig) { c.extra = append(c.extra, attrs...) }
}

// WithoutImplicitKey keeps a model without a primary key as declared.
// By default such a model gets an auto-increment integer "id" key.
func WithoutImplicitKey() ModelOption {
	return func(c *modelConfig) { c.noKey = true }
}

func WithBeforeUpsert(fn BeforeUpsertFunc) ModelOption {
	return func(c *modelConfig) { c.before = fn }
}

func WithAfterUpsert(fn AfterUpsertFunc) ModelOption {
	return func(c *modelConfig) { c.after = fn }
}

func newModel(db *DB, name string, attrs []Attribute, opts []ModelOption) (*Model, error) {
	if name == "" {
		return nil, &ORMError{Code: ErrCodeSchema, Message: "model name is empty"}
	}
	cfg := modelConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	schema, err := NewSchema(append(attrs, cfg.extra...)...)
	if err != nil {
		return nil, err
	}
	if !cfg.noKey && needsImplicitKey(schema) {
		key := Attribute{Name: implicitKey, Type: TypeInteger, PrimaryKey: true, AutoIncrement: true}
		if schema, err = NewSchema(append([]Attribute{key}, schema.Attributes()...)...); err != nil {
			return nil, err
		}
	}
	ts := DefaultTimestamps()
	if cfg.timestamps != nil {
		ts = *cfg.timestamps
	}
	// timestamp attributes the caller did not declare get a date column named after them
	var missing []Attribute
	for _, n := range ts.names() {
		a, ok := schema.Lookup(n)
		if !ok {
			missing = append(missing, Attribute{Name: n, Type: TypeDate, NotNull: true})
			continue
		}
		if a.IsVirtual() {
			return nil, &ORMError{Code: ErrCodeSchema, Message: fmt.Sprintf("timestamp attribute %q cannot be virtual", n)}
		}
	}
	if len(missing) > 0 {
		if schema, err = schema.with(missing...); err != nil {
			return nil, err
		}
	}
	table := cfg.table
	if table == "" {
		table = core.ToSnakeCase(name) + "s"
	}
	return &Model{
		db:         db,
		name:       name,
		table:      table,
		schema:     schema,
		timestamps: ts,
		strict:     cfg.strict,
		before:     cfg.before,
		after:      cfg.after,
	}, nil
}

const implicitKey = "id"

// needsImplicitKey reports whether a keyless schema can take an "id" column
func needsImplicitKey(s *Schema) bool {
	if len(s.PrimaryKeys()) > 0 {
		return false
	}
	if _, ok := s.Lookup(implicitKey); ok {
		return false
	}
	_, ok := s.ByField(implicitKey)
	return !ok
}

func (m *Model) Name() string                { return m.name }
func (m *Model) Table() string               { return m.table }
func (m *Model) Schema() *Schema             { return m.schema }
func (m *Model) Timestamps() TimestampConfig { return m.timestamps }
func (m *Model) DB() *DB                     { return m.db }

func (m *Model) isStrict() bool {
	if m.strict != nil {
		return *m.strict
	}
	return m.db != nil && m.db.strict
}

// ModelDescriptor is the view of a model handed to a storage engine
type ModelDescriptor struct {
	Name            string
	Table           string
	Columns         []string
	PrimaryKeys     []string
	AutoIncrement   string
	ConflictColumns []string
}

// Descriptor builds the storage view for one call. The conflict target is the
// explicit list when given, else the first unique key fully present in insert,
// else the primary key.
func (m *Model) Descriptor(insert *FieldMap, conflict []string) (ModelDescriptor, error) {
	d := ModelDescriptor{Name: m.name, Table: m.table, Columns: m.schema.Columns()}
	for _, a := range m.schema.PrimaryKeys() {
		d.PrimaryKeys = append(d.PrimaryKeys, a.Column())
		if a.AutoIncrement {
			d.AutoIncrement = a.Column()
		}
	}
	if len(conflict) > 0 {
		for _, name := range conflict {
			a, ok := m.schema.Lookup(name)
			if !ok || a.IsVirtual() {
				return d, &ORMError{Code: ErrCodeUnknownAttribute, Message: fmt.Sprintf("unknown conflict attribute %q on model %s", name, m.name)}
			}
			d.ConflictColumns = append(d.ConflictColumns, a.Column())
		}
		return d, nil
	}
	if insert != nil {
		for _, key := range m.schema.UniqueKeys() {
			if containsAll(insert, key) {
				d.ConflictColumns = append([]string(nil), key...)
				return d, nil
			}
		}
	}
	d.ConflictColumns = append([]string(nil), d.PrimaryKeys...)
	return d, nil
}

func containsAll(m *FieldMap, cols []string) bool {
	for _, c := range cols {
		if !m.Has(c) {
			return false
		}
	}
	return true
}
