package tlv

import (
	"bytes"
	"errors"
	"testing"
)

func TestEncodeDecodeFieldsRoundTripPreservesUnknown(t *testing.T) {
	in := []Field{
		{ID: 1, Type: TypeString, Value: []byte("MAIN.App0.bool_value")},
		{ID: 9999, Type: TypeBytes, Value: []byte{0xAA, 0xBB}}, // unknown field id
	}
	b := EncodeFields(in)
	out, err := DecodeFields(b)
	if err != nil {
		t.Fatalf("decode fields: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 fields, got %d", len(out))
	}
	if out[1].ID != 9999 || out[1].Type != TypeBytes || !bytes.Equal(out[1].Value, []byte{0xAA, 0xBB}) {
		t.Fatalf("unknown field not preserved: %+v", out[1])
	}
}

func TestDecodeFieldsMalformedHeaderIsDeterministic(t *testing.T) {
	_, err := DecodeFields([]byte{1, 2, 3})
	if !errors.Is(err, ErrShortFieldHeader) {
		t.Fatalf("expected ErrShortFieldHeader, got %v", err)
	}
}

func TestDecodeFieldsMalformedLengthIsDeterministic(t *testing.T) {
	// id=1, type=string, len=5, value only 2 bytes
	payload := []byte{0, 1, TypeString, 0, 0, 0, 5, 'a', 'b'}
	_, err := DecodeFields(payload)
	if !errors.Is(err, ErrShortFieldValue) {
		t.Fatalf("expected ErrShortFieldValue, got %v", err)
	}
}

func TestScalarFieldAccessors(t *testing.T) {
	payload := EncodeFields([]Field{
		I64(1, -42),
		F64(2, 3.5),
		Bool(3, true),
		String(4, "MAIN.App0"),
		U64(5, 1<<40),
	})
	fields, err := DecodeFields(payload)
	if err != nil {
		t.Fatalf("decode fields: %v", err)
	}
	i, err := fields[0].AsI64()
	if err != nil || i != -42 {
		t.Fatalf("expected -42, got %d err=%v", i, err)
	}
	f, err := fields[1].AsF64()
	if err != nil || f != 3.5 {
		t.Fatalf("expected 3.5, got %v err=%v", f, err)
	}
	b, err := fields[2].AsBool()
	if err != nil || !b {
		t.Fatalf("expected true, got %v err=%v", b, err)
	}
	s, err := fields[3].AsString()
	if err != nil || s != "MAIN.App0" {
		t.Fatalf("expected MAIN.App0, got %q err=%v", s, err)
	}
	u, err := fields[4].AsU64()
	if err != nil || u != 1<<40 {
		t.Fatalf("expected 1<<40, got %d err=%v", u, err)
	}
}

func TestAccessorTypeMismatch(t *testing.T) {
	_, err := String(1, "x").AsI64()
	if !errors.Is(err, ErrTypeMismatch) {
		t.Fatalf("expected ErrTypeMismatch, got %v", err)
	}
	_, err = Bool(1, true).AsFields()
	if !errors.Is(err, ErrTypeMismatch) {
		t.Fatalf("expected ErrTypeMismatch, got %v", err)
	}
}

func TestNestedFieldRoundTrip(t *testing.T) {
	inner := []Field{String(0, "a"), I64(0, 7)}
	outer, err := DecodeFields(EncodeField(Nested(9, TypeList, inner)))
	if err != nil {
		t.Fatalf("decode outer: %v", err)
	}
	got, err := outer[0].AsFields()
	if err != nil {
		t.Fatalf("decode nested: %v", err)
	}
	if len(got) != 2 || got[0].Type != TypeString || got[1].Type != TypeI64 {
		t.Fatalf("unexpected nested fields: %+v", got)
	}
}
