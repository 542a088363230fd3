package export

import (
	"encoding"
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strings"
)

// SafeJSON converts v into a tree of maps, slices and JSON-native leaves
// that json.Marshal always accepts. Values the encoder would reject, such as
// NaN, infinities, functions, channels and complex numbers, become their
// string form. Structs are flattened into maps following their json tags.
func SafeJSON(v any) any {
	return safeValue(reflect.ValueOf(v), 0)
}

const maxDepth = 64

// flatMapper is implemented by types with an untyped map form, such as
// dataset metadata. The map is walked instead of the marshaled bytes so
// bad leaves inside it are repaired rather than failing the whole value.
type flatMapper interface {
	Map() map[string]any
}

var (
	jsonMarshaler = reflect.TypeFor[json.Marshaler]()
	textMarshaler = reflect.TypeFor[encoding.TextMarshaler]()
)

func safeValue(v reflect.Value, depth int) any {
	if !v.IsValid() {
		return nil
	}
	if depth > maxDepth {
		return fmt.Sprint(v.Interface())
	}

	if v.Kind() != reflect.Pointer && v.Kind() != reflect.Interface && v.CanInterface() {
		if m, ok := v.Interface().(flatMapper); ok {
			return safeValue(reflect.ValueOf(m.Map()), depth+1)
		}
		if v.Type().Implements(jsonMarshaler) || v.Type().Implements(textMarshaler) {
			return viaMarshaler(v)
		}
	}

	switch v.Kind() {
	case reflect.Pointer, reflect.Interface:
		if v.IsNil() {
			return nil
		}
		if v.Kind() == reflect.Pointer && v.Type().Implements(jsonMarshaler) {
			return viaMarshaler(v)
		}
		return safeValue(v.Elem(), depth+1)

	case reflect.Bool:
		return v.Bool()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return v.Uint()
	case reflect.Float32, reflect.Float64:
		return safeFloat(v.Float())
	case reflect.String:
		return v.String()

	case reflect.Slice:
		if v.IsNil() {
			return []any{}
		}
		fallthrough
	case reflect.Array:
		out := make([]any, v.Len())
		for i := range out {
			out[i] = safeValue(v.Index(i), depth+1)
		}
		return out

	case reflect.Map:
		out := make(map[string]any, v.Len())
		iter := v.MapRange()
		for iter.Next() {
			out[mapKey(iter.Key())] = safeValue(iter.Value(), depth+1)
		}
		return out

	case reflect.Struct:
		out := make(map[string]any, v.NumField())
		writeStruct(out, v, depth)
		return out

	default:
		// Functions, channels, complex numbers, unsafe pointers.
		return fmt.Sprint(v.Interface())
	}
}

func safeFloat(f float64) any {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	default:
		return f
	}
}

// viaMarshaler round-trips a value through its own marshaler so custom
// encodings (flat metadata, cell values) are kept. A failing marshaler
// degrades to the value's string form.
func viaMarshaler(v reflect.Value) any {
	data, err := json.Marshal(v.Interface())
	if err != nil {
		return fmt.Sprint(v.Interface())
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return string(data)
	}
	return out
}

func mapKey(k reflect.Value) string {
	if k.Kind() == reflect.String {
		return k.String()
	}
	return fmt.Sprint(k.Interface())
}

func writeStruct(out map[string]any, v reflect.Value, depth int) {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		name, omitEmpty, skip := jsonField(f)
		if skip {
			continue
		}
		fv := v.Field(i)
		if f.Anonymous && name == "" {
			inner := fv
			if inner.Kind() == reflect.Pointer {
				if inner.IsNil() {
					continue
				}
				inner = inner.Elem()
			}
			if inner.Kind() == reflect.Struct {
				writeStruct(out, inner, depth+1)
				continue
			}
		}
		if omitEmpty && fv.IsZero() {
			continue
		}
		if name == "" {
			name = f.Name
		}
		out[name] = safeValue(fv, depth+1)
	}
}

// jsonField reads the json tag of f.
func jsonField(f reflect.StructField) (name string, omitEmpty, skip bool) {
	tag := f.Tag.Get("json")
	if tag == "-" {
		return "", false, true
	}
	parts := strings.Split(tag, ",")
	for _, opt := range parts[1:] {
		if opt == "omitempty" {
			omitEmpty = true
		}
	}
	return parts[0], omitEmpty, false
}
