// Package modelfile loads normup model definitions from YAML. Virtual
// attribute setters and getters are written as expr-lang expressions.
//
//	models:
//	  - name: User
//	    timestamps: {createdAt: createdAt, updatedAt: updatedAt}
//	    attributes:
//	      - {name: id, type: integer, primaryKey: true, autoIncrement: true}
//	      - {name: first}
//	      - {name: last}
//	      - name: fullName
//	        virtual: true
//	        set:
//	          - {attr: first, expr: 'split(val, " ")[0]'}
//	          - {attr: last, expr: 'split(val, " ")[1]'}
//	        get: 'record.first + " " + record.last'
package modelfile

import (
	"bytes"
	"os"
	"strings"

	"github.com/kintsdev/normup"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// File is the root of a model file
type File struct {
	Models []ModelDef `yaml:"models"`
}

type ModelDef struct {
	Name       string         `yaml:"name"`
	Table      string         `yaml:"table"`
	Strict     *bool          `yaml:"strict"`
	Timestamps *TimestampsDef `yaml:"timestamps"`
	Attributes []AttributeDef `yaml:"attributes"`
}

// TimestampsDef accepts either a bool or a {createdAt, updatedAt} mapping
type TimestampsDef struct {
	Enabled   bool
	CreatedAt string
	UpdatedAt string
}

func (t *TimestampsDef) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		var on bool
		if err := node.Decode(&on); err != nil {
			return errors.Wrap(err, "timestamps")
		}
		*t = TimestampsDef{Enabled: on}
		if on {
			d := normup.DefaultTimestamps()
			t.CreatedAt, t.UpdatedAt = d.CreatedAt, d.UpdatedAt
		}
		return nil
	}
	var names struct {
		CreatedAt string `yaml:"createdAt"`
		UpdatedAt string `yaml:"updatedAt"`
	}
	if err := node.Decode(&names); err != nil {
		return errors.Wrap(err, "timestamps")
	}
	*t = TimestampsDef{Enabled: true, CreatedAt: names.CreatedAt, UpdatedAt: names.UpdatedAt}
	return nil
}

type AttributeDef struct {
	Name          string    `yaml:"name"`
	Field         string    `yaml:"field"`
	Type          string    `yaml:"type"`
	PrimaryKey    bool      `yaml:"primaryKey"`
	AutoIncrement bool      `yaml:"autoIncrement"`
	Unique        bool      `yaml:"unique"`
	UniqueGroup   string    `yaml:"uniqueGroup"`
	NotNull       bool      `yaml:"notNull"`
	Default       any       `yaml:"default"`
	Virtual       bool      `yaml:"virtual"`
	Set           []SetExpr `yaml:"set"`
	Fail          string    `yaml:"fail"`
	Get           string    `yaml:"get"`
}

// SetExpr assigns the result of Expr to the attribute Attr.
// Expressions see the incoming value as val and the staged values as record.
type SetExpr struct {
	Attr string `yaml:"attr"`
	Expr string `yaml:"expr"`
}

// Load reads and parses a model file
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read model file %s", path)
	}
	f, err := Parse(data)
	if err != nil {
		return nil, errors.Wrapf(err, "parse model file %s", path)
	}
	return f, nil
}

// Parse decodes YAML, rejecting unknown keys
func Parse(data []byte) (*File, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var f File
	if err := dec.Decode(&f); err != nil {
		return nil, err
	}
	return &f, nil
}

// Model returns the definition with the given name
func (f *File) Model(name string) (ModelDef, bool) {
	for _, m := range f.Models {
		if m.Name == name {
			return m, true
		}
	}
	return ModelDef{}, false
}

// Define registers every model of the file on db, in file order
func (f *File) Define(db *normup.DB) ([]*normup.Model, error) {
	out := make([]*normup.Model, 0, len(f.Models))
	for _, md := range f.Models {
		attrs, err := md.Build()
		if err != nil {
			return nil, errors.Wrapf(err, "model %s", md.Name)
		}
		m, err := db.Define(md.Name, attrs, md.Options()...)
		if err != nil {
			return nil, errors.Wrapf(err, "model %s", md.Name)
		}
		out = append(out, m)
	}
	return out, nil
}

// Options translates table, strictness and timestamps into model options
func (md ModelDef) Options() []normup.ModelOption {
	var opts []normup.ModelOption
	if md.Table != "" {
		opts = append(opts, normup.WithTable(md.Table))
	}
	if md.Strict != nil {
		opts = append(opts, normup.WithModelStrict(*md.Strict))
	}
	if ts := md.Timestamps; ts != nil {
		if ts.Enabled {
			opts = append(opts, normup.WithTimestamps(ts.CreatedAt, ts.UpdatedAt))
		} else {
			opts = append(opts, normup.WithoutTimestamps())
		}
	}
	return opts
}

// Build compiles the attribute list
func (md ModelDef) Build() ([]normup.Attribute, error) {
	attrs := make([]normup.Attribute, 0, len(md.Attributes))
	for _, ad := range md.Attributes {
		a, err := ad.build()
		if err != nil {
			return nil, errors.Wrapf(err, "attribute %s", ad.Name)
		}
		attrs = append(attrs, a)
	}
	return attrs, nil
}

func (ad AttributeDef) build() (normup.Attribute, error) {
	if ad.Virtual {
		set, err := compileSetter(ad.Set, ad.Fail)
		if err != nil {
			return normup.Attribute{}, err
		}
		get, err := compileGetter(ad.Get)
		if err != nil {
			return normup.Attribute{}, err
		}
		return normup.Virtual(ad.Name, set, get), nil
	}
	if len(ad.Set) > 0 || ad.Get != "" || ad.Fail != "" {
		return normup.Attribute{}, errors.New("set/get/fail require virtual: true")
	}
	typ, err := parseType(ad.Type)
	if err != nil {
		return normup.Attribute{}, err
	}
	return normup.Attribute{
		Name:          ad.Name,
		Field:         ad.Field,
		Type:          typ,
		PrimaryKey:    ad.PrimaryKey,
		AutoIncrement: ad.AutoIncrement,
		Unique:        ad.Unique,
		UniqueGroup:   ad.UniqueGroup,
		NotNull:       ad.NotNull,
		Default:       parseDefault(ad.Default),
	}, nil
}

func parseType(s string) (normup.DataType, error) {
	switch strings.ToLower(s) {
	case "", "string", "varchar":
		return normup.TypeString, nil
	case "text":
		return normup.TypeText, nil
	case "integer", "int":
		return normup.TypeInteger, nil
	case "bigint":
		return normup.TypeBigInt, nil
	case "float", "double", "real":
		return normup.TypeFloat, nil
	case "boolean", "bool":
		return normup.TypeBoolean, nil
	case "date", "datetime", "timestamp":
		return normup.TypeDate, nil
	case "uuid":
		return normup.TypeUUID, nil
	case "json", "jsonb":
		return normup.TypeJSON, nil
	}
	return "", errors.Errorf("unknown type %q", s)
}

func parseDefault(v any) any {
	if s, ok := v.(string); ok {
		switch strings.ToLower(s) {
		case "now", "now()":
			return normup.DefaultNow
		case "uuid", "uuidv4":
			return normup.DefaultUUIDv4
		}
	}
	return v
}
