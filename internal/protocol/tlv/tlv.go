package tlv

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

const HeaderLen = 7

var (
	ErrShortFieldHeader = errors.New("tlv: short field header")
	ErrShortFieldValue  = errors.New("tlv: short field value")
	ErrTypeMismatch     = errors.New("tlv: field type mismatch")
	ErrInvalidLength    = errors.New("tlv: invalid value length")
)

// Type IDs. List and Map carry a nested TLV payload.
const (
	TypeU8     uint8 = 1
	TypeU16    uint8 = 2
	TypeU32    uint8 = 3
	TypeU64    uint8 = 4
	TypeBool   uint8 = 5
	TypeString uint8 = 6
	TypeBytes  uint8 = 7
	TypeI64    uint8 = 8
	TypeF64    uint8 = 9
	TypeList   uint8 = 10
	TypeMap    uint8 = 11
	TypeNil    uint8 = 12
	TypeCell   uint8 = 13
)

// Field is one decoded TLV field.
type Field struct {
	ID    uint16
	Type  uint8
	Value []byte
}

func EncodeField(f Field) []byte {
	buf := make([]byte, HeaderLen+len(f.Value))
	binary.BigEndian.PutUint16(buf[0:2], f.ID)
	buf[2] = f.Type
	binary.BigEndian.PutUint32(buf[3:7], uint32(len(f.Value)))
	copy(buf[7:], f.Value)
	return buf
}

func DecodeFields(payload []byte) ([]Field, error) {
	fields := make([]Field, 0)
	i := 0
	for i < len(payload) {
		if len(payload)-i < HeaderLen {
			return nil, ErrShortFieldHeader
		}
		id := binary.BigEndian.Uint16(payload[i : i+2])
		typeID := payload[i+2]
		l := binary.BigEndian.Uint32(payload[i+3 : i+7])
		i += HeaderLen
		if uint32(len(payload)-i) < l {
			return nil, ErrShortFieldValue
		}
		val := make([]byte, l)
		copy(val, payload[i:i+int(l)])
		i += int(l)
		fields = append(fields, Field{ID: id, Type: typeID, Value: val})
	}
	return fields, nil
}

func EncodeFields(fields []Field) []byte {
	out := make([]byte, 0)
	for _, f := range fields {
		out = append(out, EncodeField(f)...)
	}
	return out
}

func GetField(fields []Field, id uint16) (Field, bool) {
	for _, f := range fields {
		if f.ID == id {
			return f, true
		}
	}
	return Field{}, false
}

func MustType(f Field, expected uint8) error {
	if f.Type != expected {
		return fmt.Errorf("%w: field %d got %d want %d", ErrTypeMismatch, f.ID, f.Type, expected)
	}
	return nil
}

func String(id uint16, v string) Field {
	return Field{ID: id, Type: TypeString, Value: []byte(v)}
}

func Bytes(id uint16, v []byte) Field {
	buf := make([]byte, len(v))
	copy(buf, v)
	return Field{ID: id, Type: TypeBytes, Value: buf}
}

func Bool(id uint16, v bool) Field {
	b := byte(0)
	if v {
		b = 1
	}
	return Field{ID: id, Type: TypeBool, Value: []byte{b}}
}

func U8(id uint16, v uint8) Field {
	return Field{ID: id, Type: TypeU8, Value: []byte{v}}
}

func U32(id uint16, v uint32) Field {
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, v)
	return Field{ID: id, Type: TypeU32, Value: buf}
}

func U64(id uint16, v uint64) Field {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, v)
	return Field{ID: id, Type: TypeU64, Value: buf}
}

func I64(id uint16, v int64) Field {
	f := U64(id, uint64(v))
	f.Type = TypeI64
	return f
}

func F64(id uint16, v float64) Field {
	f := U64(id, math.Float64bits(v))
	f.Type = TypeF64
	return f
}

func Nil(id uint16) Field {
	return Field{ID: id, Type: TypeNil}
}

// Nested wraps an encoded field list as a single list, map or cell field.
func Nested(id uint16, typeID uint8, fields []Field) Field {
	return Field{ID: id, Type: typeID, Value: EncodeFields(fields)}
}

func (f Field) AsString() (string, error) {
	if err := MustType(f, TypeString); err != nil {
		return "", err
	}
	return string(f.Value), nil
}

func (f Field) AsBytes() ([]byte, error) {
	if err := MustType(f, TypeBytes); err != nil {
		return nil, err
	}
	buf := make([]byte, len(f.Value))
	copy(buf, f.Value)
	return buf, nil
}

func (f Field) AsBool() (bool, error) {
	if err := MustType(f, TypeBool); err != nil {
		return false, err
	}
	if len(f.Value) != 1 || f.Value[0] > 1 {
		return false, fmt.Errorf("%w: bool field %d", ErrInvalidLength, f.ID)
	}
	return f.Value[0] == 1, nil
}

func (f Field) AsU8() (uint8, error) {
	if err := MustType(f, TypeU8); err != nil {
		return 0, err
	}
	if len(f.Value) != 1 {
		return 0, fmt.Errorf("%w: u8 field %d", ErrInvalidLength, f.ID)
	}
	return f.Value[0], nil
}

func (f Field) AsU32() (uint32, error) {
	if err := MustType(f, TypeU32); err != nil {
		return 0, err
	}
	return U32FromBytes(f.Value)
}

func (f Field) AsU64() (uint64, error) {
	if err := MustType(f, TypeU64); err != nil {
		return 0, err
	}
	return u64FromBytes(f.Value)
}

func (f Field) AsI64() (int64, error) {
	if err := MustType(f, TypeI64); err != nil {
		return 0, err
	}
	v, err := u64FromBytes(f.Value)
	return int64(v), err
}

func (f Field) AsF64() (float64, error) {
	if err := MustType(f, TypeF64); err != nil {
		return 0, err
	}
	v, err := u64FromBytes(f.Value)
	return math.Float64frombits(v), err
}

// AsFields decodes the nested payload of a list, map or cell field.
func (f Field) AsFields() ([]Field, error) {
	switch f.Type {
	case TypeList, TypeMap, TypeCell:
		return DecodeFields(f.Value)
	default:
		return nil, fmt.Errorf("%w: field %d type %d is not nested", ErrTypeMismatch, f.ID, f.Type)
	}
}

func U32FromBytes(b []byte) (uint32, error) {
	if len(b) != 4 {
		return 0, fmt.Errorf("%w: u32 length %d", ErrInvalidLength, len(b))
	}
	return binary.BigEndian.Uint32(b), nil
}

func u64FromBytes(b []byte) (uint64, error) {
	if len(b) != 8 {
		return 0, fmt.Errorf("%w: u64 length %d", ErrInvalidLength, len(b))
	}
	return binary.BigEndian.Uint64(b), nil
}
