// Package trace records probed signals of a running system and stores
// finished runs on disk as metadata.json plus samples.csv.
package trace

import (
	"reflect"

	"github.com/san-kum/flowmbed/internal/dynsys"
)

// Probe samples one signal as a float.
type Probe struct {
	Name string
	Read func() float64
}

// Func returns a probe over an arbitrary function.
func Func(name string, read func() float64) Probe {
	return Probe{Name: name, Read: read}
}

// Output returns a probe over a block output. Booleans read as 0 or 1.
func Output[T dynsys.Value](name string, o *dynsys.Output[T]) Probe {
	return Probe{Name: name, Read: func() float64 { return toFloat(o.Get()) }}
}

func toFloat(v any) float64 {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Bool:
		if rv.Bool() {
			return 1
		}
		return 0
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint())
	case reflect.Float32, reflect.Float64:
		return rv.Float()
	}
	return 0
}
