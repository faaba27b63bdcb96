package normup

import (
	"time"

	"github.com/google/uuid"
)

// AttributeKind tags an attribute as backed by a column or computed
type AttributeKind int

const (
	KindPhysical AttributeKind = iota
	KindVirtual
)

func (k AttributeKind) String() string {
	if k == KindVirtual {
		return "virtual"
	}
	return "physical"
}

// DataType is the logical storage type of an attribute
type DataType string

const (
	TypeString  DataType = "string"
	TypeText    DataType = "text"
	TypeInteger DataType = "integer"
	TypeBigInt  DataType = "bigint"
	TypeFloat   DataType = "float"
	TypeBoolean DataType = "boolean"
	TypeDate    DataType = "date"
	TypeUUID    DataType = "uuid"
	TypeJSON    DataType = "json"
	TypeVirtual DataType = "virtual"
)

// Setter distributes a virtual value onto the staging record.
// Writes go through rec.Set using logical attribute names.
type Setter func(value any, rec *Record) error

// Getter computes a virtual value from a record
type Getter func(rec *Record) any

// DefaultFunc produces a fresh default value on every call
type DefaultFunc func() any

// DefaultNow stamps the current UTC time
var DefaultNow DefaultFunc = func() any { return time.Now().UTC() }

// DefaultUUIDv4 generates a random UUID string
var DefaultUUIDv4 DefaultFunc = func() any { return uuid.NewString() }

// Attribute describes one logical attribute of a model
type Attribute struct {
	Name          string
	Field         string // physical column; defaults to Name
	Kind          AttributeKind
	Type          DataType
	PrimaryKey    bool
	AutoIncrement bool
	Unique        bool
	UniqueGroup   string // composite unique key name
	NotNull       bool
	Default       any // literal value or DefaultFunc
	Set           Setter
	Get           Getter
}

// Virtual declares a computed attribute with optional setter and getter
func Virtual(name string, set Setter, get Getter) Attribute {
	return Attribute{Name: name, Kind: KindVirtual, Type: TypeVirtual, Set: set, Get: get}
}

// IsVirtual reports whether the attribute has no physical column
func (a Attribute) IsVirtual() bool { return a.Kind == KindVirtual }

// Column returns the physical column name
func (a Attribute) Column() string {
	if a.Field != "" {
		return a.Field
	}
	return a.Name
}

func (a Attribute) HasDefault() bool { return a.Default != nil }

// DefaultValue evaluates the default, calling it when it is a generator
func (a Attribute) DefaultValue() any {
	switch d := a.Default.(type) {
	case DefaultFunc:
		return d()
	case func() any:
		return d()
	}
	return a.Default
}
