package normup

// Apply routes one payload value into the staging record.
//
// Virtual attributes with a setter hand the value to the setter, which decides
// which physical attributes change. Virtual attributes without a setter keep the
// value under their own name; the resolver never maps them to a column.
// Physical attributes are stored as-is. Nothing is validated and setter errors
// are returned unchanged.
func Apply(rec *Record, attr Attribute, value any) error {
	if attr.IsVirtual() && attr.Set != nil {
		return attr.Set(value, rec)
	}
	rec.Set(attr.Name, value)
	return nil
}
