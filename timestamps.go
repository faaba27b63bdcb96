package normup

import "time"

// TimestampConfig names the automatically stamped attributes of a model.
// An empty name means the model has no such column.
type TimestampConfig struct {
	Enabled   bool
	CreatedAt string
	UpdatedAt string
}

// DefaultTimestamps is the configuration used when a model does not choose one
func DefaultTimestamps() TimestampConfig {
	return TimestampConfig{Enabled: true, CreatedAt: "createdAt", UpdatedAt: "updatedAt"}
}

func (c TimestampConfig) names() []string {
	if !c.Enabled {
		return nil
	}
	var out []string
	if c.CreatedAt != "" {
		out = append(out, c.CreatedAt)
	}
	if c.UpdatedAt != "" && c.UpdatedAt != c.CreatedAt {
		out = append(out, c.UpdatedAt)
	}
	return out
}

func (c TimestampConfig) isTimestamp(name string) bool {
	return c.Enabled && name != "" && (name == c.CreatedAt || name == c.UpdatedAt)
}

func defaultClock() time.Time { return time.Now().UTC().Truncate(time.Microsecond) }

// stampTimestamps appends timestamp columns after the data columns.
// created goes to the insert map only; updated goes to both with one shared value.
// A column the caller already supplied is left alone.
func stampTimestamps(cfg TimestampConfig, schema *Schema, now func() time.Time, insert, update *FieldMap) {
	if !cfg.Enabled {
		return
	}
	instant := now()
	if a, ok := schema.Lookup(cfg.CreatedAt); ok && !a.IsVirtual() {
		if !insert.Has(a.Column()) {
			insert.Set(a.Column(), stampValue(a, instant))
		}
	}
	if a, ok := schema.Lookup(cfg.UpdatedAt); ok && !a.IsVirtual() {
		v := stampValue(a, instant)
		if !insert.Has(a.Column()) {
			insert.Set(a.Column(), v)
		}
		if !update.Has(a.Column()) {
			update.Set(a.Column(), v)
		}
	}
}

func stampValue(a Attribute, instant time.Time) any {
	if a.HasDefault() {
		return a.DefaultValue()
	}
	return instant
}
