package sink

// Setters describe how the measurement name and the field/tag key sets are
// derived for each record. Each setter is either a static value (the common
// case, configured from YAML) or a function of the record value (for dynamic
// routing decided in code). Setters are resolved once at construction into
// uniform per-record functions, so the steady-state cost is one function call
// per record regardless of which variant was supplied.

// MeasurementFunc derives a measurement name from a record value.
// The value passed in is the original, unmodified record.
type MeasurementFunc func(value map[string]any) string

// KeysFunc derives a key set (field keys or tag keys) from a record value.
// The value passed in is the original, unmodified record.
type KeysFunc func(value map[string]any) []string

// MeasurementSetter selects the measurement a point is written to.
// Use StaticMeasurement or DynamicMeasurement to construct one.
type MeasurementSetter struct {
	name string
	fn   MeasurementFunc
}

// StaticMeasurement returns a setter that always yields the given name.
func StaticMeasurement(name string) MeasurementSetter {
	return MeasurementSetter{name: name}
}

// DynamicMeasurement returns a setter that derives the measurement from
// each record value.
func DynamicMeasurement(fn MeasurementFunc) MeasurementSetter {
	return MeasurementSetter{fn: fn}
}

// resolve returns the uniform per-record function for this setter.
// Static setters are wrapped in a closure ignoring its input; dynamic
// setters pass through unchanged.
func (s MeasurementSetter) resolve() MeasurementFunc {
	if s.fn != nil {
		return s.fn
	}
	name := s.name
	return func(map[string]any) string { return name }
}

// isZero reports whether the setter was left unset.
func (s MeasurementSetter) isZero() bool {
	return s.fn == nil && s.name == ""
}

// KeysSetter selects a set of record keys (used for both field keys and tag
// keys). Use StaticKeys or DynamicKeys to construct one. The zero value is a
// valid empty static set.
type KeysSetter struct {
	keys []string
	fn   KeysFunc
}

// StaticKeys returns a setter that always yields the given keys.
func StaticKeys(keys ...string) KeysSetter {
	return KeysSetter{keys: keys}
}

// DynamicKeys returns a setter that derives the key set from each record
// value.
func DynamicKeys(fn KeysFunc) KeysSetter {
	return KeysSetter{fn: fn}
}

// resolve returns the uniform per-record function for this setter.
func (s KeysSetter) resolve() KeysFunc {
	if s.fn != nil {
		return s.fn
	}
	keys := s.keys
	return func(map[string]any) []string { return keys }
}

// staticKeys returns the key list and true when the setter is static.
// Dynamic setters return false; their keys cannot be known up front, which
// is why the field/tag overlap check only runs for static pairs.
func (s KeysSetter) staticKeys() ([]string, bool) {
	if s.fn != nil {
		return nil, false
	}
	return s.keys, true
}
