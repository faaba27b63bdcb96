package normup

import (
	"fmt"
	"strings"
)

// Schema is the ordered, immutable attribute list of a model.
// It is safe for concurrent use once built.
type Schema struct {
	attrs   []Attribute
	byName  map[string]int
	byField map[string]int
}

// NewSchema validates attrs and freezes them in declaration order
func NewSchema(attrs ...Attribute) (*Schema, error) {
	s := &Schema{
		attrs:   make([]Attribute, 0, len(attrs)),
		byName:  make(map[string]int, len(attrs)),
		byField: make(map[string]int, len(attrs)),
	}
	for _, a := range attrs {
		if err := s.add(a); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *Schema) add(a Attribute) error {
	if strings.TrimSpace(a.Name) == "" {
		return &ORMError{Code: ErrCodeSchema, Message: "attribute name is empty"}
	}
	if _, dup := s.byName[a.Name]; dup {
		return &ORMError{Code: ErrCodeSchema, Message: fmt.Sprintf("duplicate attribute %q", a.Name)}
	}
	if a.IsVirtual() {
		if a.PrimaryKey || a.AutoIncrement {
			return &ORMError{Code: ErrCodeSchema, Message: fmt.Sprintf("virtual attribute %q cannot be a key", a.Name)}
		}
		a.Field = ""
		if a.Type == "" {
			a.Type = TypeVirtual
		}
	} else {
		if a.Type == "" {
			a.Type = TypeString
		}
		col := strings.ToLower(a.Column())
		if prev, dup := s.byField[col]; dup {
			return &ORMError{Code: ErrCodeSchema, Message: fmt.Sprintf("attributes %q and %q share column %q", s.attrs[prev].Name, a.Name, a.Column())}
		}
		s.byField[col] = len(s.attrs)
	}
	s.byName[a.Name] = len(s.attrs)
	s.attrs = append(s.attrs, a)
	return nil
}

// Lookup resolves a logical attribute name
func (s *Schema) Lookup(name string) (Attribute, bool) {
	i, ok := s.byName[name]
	if !ok {
		return Attribute{}, false
	}
	return s.attrs[i], true
}

// ByField resolves a physical column name (case-insensitive)
func (s *Schema) ByField(column string) (Attribute, bool) {
	i, ok := s.byField[strings.ToLower(column)]
	if !ok {
		return Attribute{}, false
	}
	return s.attrs[i], true
}

// Attributes returns a copy of the attributes in declaration order
func (s *Schema) Attributes() []Attribute {
	out := make([]Attribute, len(s.attrs))
	copy(out, s.attrs)
	return out
}

func (s *Schema) Len() int { return len(s.attrs) }

// Columns lists physical columns in declaration order
func (s *Schema) Columns() []string {
	out := make([]string, 0, len(s.attrs))
	for _, a := range s.attrs {
		if !a.IsVirtual() {
			out = append(out, a.Column())
		}
	}
	return out
}

func (s *Schema) PrimaryKeys() []Attribute {
	var out []Attribute
	for _, a := range s.attrs {
		if a.PrimaryKey {
			out = append(out, a)
		}
	}
	return out
}

// UniqueKeys returns the physical columns of every unique key, single-column
// keys and composite groups interleaved in declaration order
func (s *Schema) UniqueKeys() [][]string {
	var out [][]string
	groups := map[string]int{}
	for _, a := range s.attrs {
		if a.IsVirtual() {
			continue
		}
		if a.UniqueGroup != "" {
			if i, ok := groups[a.UniqueGroup]; ok {
				out[i] = append(out[i], a.Column())
				continue
			}
			groups[a.UniqueGroup] = len(out)
			out = append(out, []string{a.Column()})
			continue
		}
		if a.Unique {
			out = append(out, []string{a.Column()})
		}
	}
	return out
}

// with returns a copy of the schema extended by extra attributes
func (s *Schema) with(extra ...Attribute) (*Schema, error) {
	return NewSchema(append(s.Attributes(), extra...)...)
}
