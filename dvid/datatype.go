/*
	This file handles the pixel types of raw plane data and the routines that
	interpret samples from a slice of bytes.
*/

package dvid

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// DataType is the pixel type of raw samples, e.g., a uint8 or a float32.  The set of
// types is closed: every switch over DataType handles all of them.
type DataType uint8

const (
	T_uint8 DataType = iota
	T_int8
	T_uint16
	T_int16
	T_uint32
	T_int32
	T_float32
	T_float64
)

// NumDataTypes is the number of supported pixel types.
const NumDataTypes = 8

var typeBytes = [NumDataTypes]int{
	T_uint8:   1,
	T_int8:    1,
	T_uint16:  2,
	T_int16:   2,
	T_uint32:  4,
	T_int32:   4,
	T_float32: 4,
	T_float64: 8,
}

var typeNames = [NumDataTypes]string{
	T_uint8:   "uint8",
	T_int8:    "int8",
	T_uint16:  "uint16",
	T_int16:   "int16",
	T_uint32:  "uint32",
	T_int32:   "int32",
	T_float32: "float32",
	T_float64: "float64",
}

// Valid returns true if t is one of the supported pixel types.
func (t DataType) Valid() bool {
	return t < NumDataTypes
}

// Bytes returns the # of bytes for a single sample of this type.
func (t DataType) Bytes() int {
	if !t.Valid() {
		return 0
	}
	return typeBytes[t]
}

func (t DataType) String() string {
	if !t.Valid() {
		return fmt.Sprintf("DataType(%d)", uint8(t))
	}
	return typeNames[t]
}

// Signed returns true if the type can hold negative values.
func (t DataType) Signed() bool {
	switch t {
	case T_int8, T_int16, T_int32, T_float32, T_float64:
		return true
	}
	return false
}

// IsFloat returns true for IEEE floating point types.
func (t DataType) IsFloat() bool {
	return t == T_float32 || t == T_float64
}

// Min returns the smallest value representable by the type.
func (t DataType) Min() float64 {
	switch t {
	case T_uint8, T_uint16, T_uint32:
		return 0
	case T_int8:
		return math.MinInt8
	case T_int16:
		return math.MinInt16
	case T_int32:
		return math.MinInt32
	case T_float32:
		return -math.MaxFloat32
	case T_float64:
		return -math.MaxFloat64
	}
	return 0
}

// Max returns the largest value representable by the type.
func (t DataType) Max() float64 {
	switch t {
	case T_uint8:
		return math.MaxUint8
	case T_int8:
		return math.MaxInt8
	case T_uint16:
		return math.MaxUint16
	case T_int16:
		return math.MaxInt16
	case T_uint32:
		return math.MaxUint32
	case T_int32:
		return math.MaxInt32
	case T_float32:
		return math.MaxFloat32
	case T_float64:
		return math.MaxFloat64
	}
	return 0
}

// Contains returns true if v lies within the numeric domain of the type.
func (t DataType) Contains(v float64) bool {
	return v >= t.Min() && v <= t.Max()
}

// Value returns the i-th sample of little-endian raw data as a float64.  The
// signedness used is that of t alone; the same bytes read as T_uint16 and T_int16
// can give 65535 and -1 respectively.
func (t DataType) Value(raw []byte, i int) float64 {
	switch t {
	case T_uint8:
		return float64(raw[i])
	case T_int8:
		return float64(int8(raw[i]))
	case T_uint16:
		return float64(binary.LittleEndian.Uint16(raw[2*i:]))
	case T_int16:
		return float64(int16(binary.LittleEndian.Uint16(raw[2*i:])))
	case T_uint32:
		return float64(binary.LittleEndian.Uint32(raw[4*i:]))
	case T_int32:
		return float64(int32(binary.LittleEndian.Uint32(raw[4*i:])))
	case T_float32:
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(raw[4*i:])))
	case T_float64:
		return math.Float64frombits(binary.LittleEndian.Uint64(raw[8*i:]))
	}
	return 0
}

// PutValue stores v as the i-th little-endian sample of raw.  Values outside the
// type's domain are saturated.
func (t DataType) PutValue(raw []byte, i int, v float64) {
	if !t.IsFloat() {
		v = math.Round(math.Max(t.Min(), math.Min(t.Max(), v)))
	}
	switch t {
	case T_uint8:
		raw[i] = uint8(v)
	case T_int8:
		raw[i] = uint8(int8(v))
	case T_uint16:
		binary.LittleEndian.PutUint16(raw[2*i:], uint16(v))
	case T_int16:
		binary.LittleEndian.PutUint16(raw[2*i:], uint16(int16(v)))
	case T_uint32:
		binary.LittleEndian.PutUint32(raw[4*i:], uint32(v))
	case T_int32:
		binary.LittleEndian.PutUint32(raw[4*i:], uint32(int32(v)))
	case T_float32:
		binary.LittleEndian.PutUint32(raw[4*i:], math.Float32bits(float32(v)))
	case T_float64:
		binary.LittleEndian.PutUint64(raw[8*i:], math.Float64bits(v))
	}
}

// ParseDataType returns the DataType for a name like "uint16".
func ParseDataType(s string) (DataType, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for t, n := range typeNames {
		if n == name {
			return DataType(t), nil
		}
	}
	return 0, fmt.Errorf("unknown pixel type %q", s)
}

// MarshalText implements the encoding.TextMarshaler interface.
func (t DataType) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("cannot marshal invalid pixel type %d", uint8(t))
	}
	return []byte(t.String()), nil
}

// UnmarshalText implements the encoding.TextUnmarshaler interface, which also
// covers TOML and YAML decoding.
func (t *DataType) UnmarshalText(b []byte) error {
	dt, err := ParseDataType(string(b))
	if err != nil {
		return err
	}
	*t = dt
	return nil
}

// MarshalJSON implements the json.Marshaler interface.
func (t DataType) MarshalJSON() ([]byte, error) {
	b, err := t.MarshalText()
	if err != nil {
		return nil, err
	}
	return json.Marshal(string(b))
}

// UnmarshalJSON implements the json.Unmarshaler interface.
func (t *DataType) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	return t.UnmarshalText([]byte(s))
}
