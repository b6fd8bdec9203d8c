package protocol

import (
	"fmt"
	"sort"

	"github.com/danmuck/apptree/internal/protocol/tlv"
)

// CellRef stands in for a synchronized cell on the wire. A ref with an
// empty Key describes a new cell whose initial contents are in Init.
type CellRef struct {
	Key      string
	Kind     uint8
	Array    bool
	Writable bool
	Init     any
}

const (
	cellKey uint16 = iota + 1
	cellKind
	cellArray
	cellWritable
	cellInit
)

const (
	mapKey   uint16 = 0
	mapValue uint16 = 1
)

// EncodeValue encodes v as a single field. Integers widen to int64, floats
// to float64. Maps must be keyed by string.
func EncodeValue(id uint16, v any) (tlv.Field, error) {
	switch x := v.(type) {
	case nil:
		return tlv.Nil(id), nil
	case bool:
		return tlv.Bool(id, x), nil
	case int:
		return tlv.I64(id, int64(x)), nil
	case int8:
		return tlv.I64(id, int64(x)), nil
	case int16:
		return tlv.I64(id, int64(x)), nil
	case int32:
		return tlv.I64(id, int64(x)), nil
	case int64:
		return tlv.I64(id, x), nil
	case uint8:
		return tlv.U64(id, uint64(x)), nil
	case uint16:
		return tlv.U64(id, uint64(x)), nil
	case uint32:
		return tlv.U64(id, uint64(x)), nil
	case uint64:
		return tlv.U64(id, x), nil
	case uint:
		return tlv.U64(id, uint64(x)), nil
	case float32:
		return tlv.F64(id, float64(x)), nil
	case float64:
		return tlv.F64(id, x), nil
	case string:
		return tlv.String(id, x), nil
	case []byte:
		return tlv.Bytes(id, x), nil
	case []any:
		return encodeList(id, x)
	case []string:
		items := make([]any, len(x))
		for i := range x {
			items[i] = x[i]
		}
		return encodeList(id, items)
	case []int64:
		items := make([]any, len(x))
		for i := range x {
			items[i] = x[i]
		}
		return encodeList(id, items)
	case []float64:
		items := make([]any, len(x))
		for i := range x {
			items[i] = x[i]
		}
		return encodeList(id, items)
	case map[string]any:
		return encodeMap(id, x)
	case CellRef:
		return encodeCell(id, x)
	case *CellRef:
		return encodeCell(id, *x)
	default:
		return tlv.Field{}, fmt.Errorf("%w: %T", ErrUnsupportedValue, v)
	}
}

// Canonical returns v in the form DecodeValue yields for it after a round
// trip, so a locally stored value reads back the same as a remote one.
func Canonical(v any) (any, error) {
	switch x := v.(type) {
	case nil, bool, int64, uint64, float64, string, []byte, CellRef:
		return x, nil
	case int:
		return int64(x), nil
	case int8:
		return int64(x), nil
	case int16:
		return int64(x), nil
	case int32:
		return int64(x), nil
	case uint:
		return uint64(x), nil
	case uint8:
		return uint64(x), nil
	case uint16:
		return uint64(x), nil
	case uint32:
		return uint64(x), nil
	case float32:
		return float64(x), nil
	case *CellRef:
		return *x, nil
	case []any:
		return canonicalList(x)
	case []string:
		out := make([]any, len(x))
		for i := range x {
			out[i] = x[i]
		}
		return out, nil
	case []int64:
		out := make([]any, len(x))
		for i := range x {
			out[i] = x[i]
		}
		return out, nil
	case []float64:
		out := make([]any, len(x))
		for i := range x {
			out[i] = x[i]
		}
		return out, nil
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, item := range x {
			c, err := Canonical(item)
			if err != nil {
				return nil, fmt.Errorf("key %q: %w", k, err)
			}
			out[k] = c
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedValue, v)
	}
}

func canonicalList(items []any) ([]any, error) {
	out := make([]any, len(items))
	for i, item := range items {
		c, err := Canonical(item)
		if err != nil {
			return nil, fmt.Errorf("index %d: %w", i, err)
		}
		out[i] = c
	}
	return out, nil
}

func encodeList(id uint16, items []any) (tlv.Field, error) {
	fields := make([]tlv.Field, 0, len(items))
	for _, item := range items {
		f, err := EncodeValue(mapValue, item)
		if err != nil {
			return tlv.Field{}, err
		}
		fields = append(fields, f)
	}
	return tlv.Nested(id, tlv.TypeList, fields), nil
}

func encodeMap(id uint16, m map[string]any) (tlv.Field, error) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	fields := make([]tlv.Field, 0, 2*len(keys))
	for _, k := range keys {
		f, err := EncodeValue(mapValue, m[k])
		if err != nil {
			return tlv.Field{}, fmt.Errorf("key %q: %w", k, err)
		}
		fields = append(fields, tlv.String(mapKey, k), f)
	}
	return tlv.Nested(id, tlv.TypeMap, fields), nil
}

func encodeCell(id uint16, ref CellRef) (tlv.Field, error) {
	fields := []tlv.Field{
		tlv.String(cellKey, ref.Key),
		tlv.U8(cellKind, ref.Kind),
		tlv.Bool(cellArray, ref.Array),
		tlv.Bool(cellWritable, ref.Writable),
	}
	if ref.Init != nil {
		f, err := EncodeValue(cellInit, ref.Init)
		if err != nil {
			return tlv.Field{}, err
		}
		fields = append(fields, f)
	}
	return tlv.Nested(id, tlv.TypeCell, fields), nil
}

// DecodeValue reverses EncodeValue. Signed integers come back as int64,
// unsigned as uint64, lists as []any, maps as map[string]any and cell
// references as CellRef.
func DecodeValue(f tlv.Field) (any, error) {
	switch f.Type {
	case tlv.TypeNil:
		return nil, nil
	case tlv.TypeBool:
		return f.AsBool()
	case tlv.TypeI64:
		return f.AsI64()
	case tlv.TypeU64:
		return f.AsU64()
	case tlv.TypeF64:
		return f.AsF64()
	case tlv.TypeString:
		return f.AsString()
	case tlv.TypeBytes:
		return f.AsBytes()
	case tlv.TypeList:
		return decodeList(f)
	case tlv.TypeMap:
		return decodeMap(f)
	case tlv.TypeCell:
		return decodeCell(f)
	default:
		return nil, fmt.Errorf("%w: field %d type %d", ErrInvalidValue, f.ID, f.Type)
	}
}

func decodeList(f tlv.Field) ([]any, error) {
	fields, err := f.AsFields()
	if err != nil {
		return nil, err
	}
	out := make([]any, 0, len(fields))
	for _, item := range fields {
		v, err := DecodeValue(item)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func decodeMap(f tlv.Field) (map[string]any, error) {
	fields, err := f.AsFields()
	if err != nil {
		return nil, err
	}
	if len(fields)%2 != 0 {
		return nil, fmt.Errorf("%w: map field %d has odd entry count", ErrInvalidValue, f.ID)
	}
	out := make(map[string]any, len(fields)/2)
	for i := 0; i < len(fields); i += 2 {
		k, err := fields[i].AsString()
		if err != nil {
			return nil, err
		}
		v, err := DecodeValue(fields[i+1])
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", k, err)
		}
		out[k] = v
	}
	return out, nil
}

func decodeCell(f tlv.Field) (CellRef, error) {
	fields, err := f.AsFields()
	if err != nil {
		return CellRef{}, err
	}
	var ref CellRef
	for _, field := range fields {
		switch field.ID {
		case cellKey:
			ref.Key, err = field.AsString()
		case cellKind:
			ref.Kind, err = field.AsU8()
		case cellArray:
			ref.Array, err = field.AsBool()
		case cellWritable:
			ref.Writable, err = field.AsBool()
		case cellInit:
			ref.Init, err = DecodeValue(field)
		}
		if err != nil {
			return CellRef{}, err
		}
	}
	return ref, nil
}
