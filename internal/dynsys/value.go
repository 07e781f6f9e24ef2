package dynsys

import (
	"encoding/binary"
	"math"
	"reflect"
)

// Scalar aliases sized for microcontroller targets.
type (
	Int   = int32
	Float = float32
	Bool  = bool
)

// Value is the set of fixed-size scalars a variable may hold.
type Value interface {
	~bool | ~int8 | ~uint8 | ~int16 | ~uint16 | ~int32 | ~uint32 | ~int64 | ~uint64 | ~float32 | ~float64
}

// SizeOf returns the number of storage bytes a value of type T occupies.
func SizeOf[T Value]() int {
	return int(typeOf[T]().Size())
}

// Values are stored little-endian and unaligned; the common types take a
// direct path and named types fall back to encoding/binary reflection.
func encode[T Value](b []byte, v T) {
	switch x := any(v).(type) {
	case float32:
		binary.LittleEndian.PutUint32(b, math.Float32bits(x))
	case float64:
		binary.LittleEndian.PutUint64(b, math.Float64bits(x))
	case int32:
		binary.LittleEndian.PutUint32(b, uint32(x))
	case int64:
		binary.LittleEndian.PutUint64(b, uint64(x))
	case bool:
		if x {
			b[0] = 1
		} else {
			b[0] = 0
		}
	default:
		_, _ = binary.Encode(b, binary.LittleEndian, v)
	}
}

func decode[T Value](b []byte) T {
	var v T
	switch p := any(&v).(type) {
	case *float32:
		*p = math.Float32frombits(binary.LittleEndian.Uint32(b))
	case *float64:
		*p = math.Float64frombits(binary.LittleEndian.Uint64(b))
	case *int32:
		*p = int32(binary.LittleEndian.Uint32(b))
	case *int64:
		*p = int64(binary.LittleEndian.Uint64(b))
	case *bool:
		*p = b[0] != 0
	default:
		_, _ = binary.Decode(b, binary.LittleEndian, &v)
	}
	return v
}

func typeOf[T Value]() reflect.Type { return reflect.TypeFor[T]() }

func decodeKind(k reflect.Kind, b []byte) any {
	le := binary.LittleEndian
	switch k {
	case reflect.Bool:
		return b[0] != 0
	case reflect.Int8:
		return int8(b[0])
	case reflect.Uint8:
		return b[0]
	case reflect.Int16:
		return int16(le.Uint16(b))
	case reflect.Uint16:
		return le.Uint16(b)
	case reflect.Int32:
		return int32(le.Uint32(b))
	case reflect.Uint32:
		return le.Uint32(b)
	case reflect.Int64:
		return int64(le.Uint64(b))
	case reflect.Uint64:
		return le.Uint64(b)
	case reflect.Float32:
		return math.Float32frombits(le.Uint32(b))
	case reflect.Float64:
		return math.Float64frombits(le.Uint64(b))
	}
	return nil
}

func encoded[T Value](v T) []byte {
	b := make([]byte, SizeOf[T]())
	encode(b, v)
	return b
}
