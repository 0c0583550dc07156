package sink

import (
	"reflect"
	"testing"
)

// =============================================================================
// Measurement Setter Tests
// =============================================================================

func TestStaticMeasurement_Resolve(t *testing.T) {
	fn := StaticMeasurement("sensor_data").resolve()

	if got := fn(map[string]any{"type": "ignored"}); got != "sensor_data" {
		t.Errorf("resolve() = %q, want sensor_data", got)
	}
	// Resolution is stable across calls and inputs.
	if got := fn(nil); got != "sensor_data" {
		t.Errorf("resolve() with nil value = %q, want sensor_data", got)
	}
}

func TestDynamicMeasurement_Resolve(t *testing.T) {
	fn := DynamicMeasurement(func(value map[string]any) string {
		return value["type"].(string)
	}).resolve()

	if got := fn(map[string]any{"type": "temperature"}); got != "temperature" {
		t.Errorf("resolve() = %q, want temperature", got)
	}
	if got := fn(map[string]any{"type": "humidity"}); got != "humidity" {
		t.Errorf("resolve() = %q, want humidity", got)
	}
}

func TestMeasurementSetter_IsZero(t *testing.T) {
	if !(MeasurementSetter{}).isZero() {
		t.Error("zero value should report isZero")
	}
	if StaticMeasurement("m").isZero() {
		t.Error("static setter should not report isZero")
	}
	if DynamicMeasurement(func(map[string]any) string { return "m" }).isZero() {
		t.Error("dynamic setter should not report isZero")
	}
}

// =============================================================================
// Keys Setter Tests
// =============================================================================

func TestStaticKeys_Resolve(t *testing.T) {
	fn := StaticKeys("a", "b").resolve()

	got := fn(map[string]any{"x": 1})
	if !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Errorf("resolve() = %v, want [a b]", got)
	}
}

func TestDynamicKeys_Resolve(t *testing.T) {
	fn := DynamicKeys(func(value map[string]any) []string {
		keys := make([]string, 0, len(value))
		for k := range value {
			keys = append(keys, k)
		}
		return keys
	}).resolve()

	got := fn(map[string]any{"only": 1})
	if !reflect.DeepEqual(got, []string{"only"}) {
		t.Errorf("resolve() = %v, want [only]", got)
	}
}

func TestKeysSetter_ZeroValueIsEmptyStatic(t *testing.T) {
	var s KeysSetter

	keys, static := s.staticKeys()
	if !static {
		t.Error("zero value should be static")
	}
	if len(keys) != 0 {
		t.Errorf("zero value keys = %v, want empty", keys)
	}
	if got := s.resolve()(map[string]any{"x": 1}); len(got) != 0 {
		t.Errorf("zero value resolve() = %v, want empty", got)
	}
}

func TestKeysSetter_StaticKeys(t *testing.T) {
	if _, static := StaticKeys("a").staticKeys(); !static {
		t.Error("static setter should report static")
	}
	dyn := DynamicKeys(func(map[string]any) []string { return nil })
	if _, static := dyn.staticKeys(); static {
		t.Error("dynamic setter should not report static")
	}
}
