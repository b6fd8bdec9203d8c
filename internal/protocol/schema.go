package protocol

import (
	"fmt"

	"github.com/danmuck/apptree/internal/protocol/tlv"
)

// FieldSpec declares a known field within a message type. Type 0 accepts
// any encoded value.
type FieldSpec struct {
	ID       uint16
	Type     uint8
	Required bool
}

// Schema defines required and known fields for a message type.
type Schema struct {
	MessageType MessageType
	Fields      []FieldSpec
}

var (
	callerSpec = FieldSpec{ID: FieldCaller, Type: tlv.TypeString, Required: true}
	nameSpec   = FieldSpec{ID: FieldName, Type: tlv.TypeString, Required: true}
	valueSpec  = FieldSpec{ID: FieldValue, Required: true}
	indexSpec  = FieldSpec{ID: FieldIndex, Type: tlv.TypeI64, Required: true}
	expectSpec = FieldSpec{ID: FieldExpect, Required: true}
)

var schemas = map[MessageType]Schema{
	MessageGet:        {MessageType: MessageGet, Fields: []FieldSpec{callerSpec, nameSpec}},
	MessageSet:        {MessageType: MessageSet, Fields: []FieldSpec{callerSpec, nameSpec, valueSpec}},
	MessageCellLoad:   {MessageType: MessageCellLoad, Fields: []FieldSpec{callerSpec, nameSpec}},
	MessageCellStore:  {MessageType: MessageCellStore, Fields: []FieldSpec{callerSpec, nameSpec, valueSpec}},
	MessageArrayLen:   {MessageType: MessageArrayLen, Fields: []FieldSpec{callerSpec, nameSpec}},
	MessageArrayIndex: {MessageType: MessageArrayIndex, Fields: []FieldSpec{callerSpec, nameSpec, indexSpec}},
	MessageArraySlice: {MessageType: MessageArraySlice, Fields: []FieldSpec{
		callerSpec, nameSpec,
		{ID: FieldLo, Type: tlv.TypeI64, Required: true},
		{ID: FieldHi, Type: tlv.TypeI64, Required: true},
	}},
	MessageArraySet:    {MessageType: MessageArraySet, Fields: []FieldSpec{callerSpec, nameSpec, indexSpec, valueSpec}},
	MessageCellUpdate:  {MessageType: MessageCellUpdate, Fields: []FieldSpec{callerSpec, nameSpec, valueSpec, expectSpec}},
	MessageArrayUpdate: {MessageType: MessageArrayUpdate, Fields: []FieldSpec{callerSpec, nameSpec, indexSpec, valueSpec, expectSpec}},
	MessageResult: {MessageType: MessageResult, Fields: []FieldSpec{
		{ID: FieldStatus, Type: tlv.TypeU8, Required: true},
		{ID: FieldMessage, Type: tlv.TypeString},
		{ID: FieldValue},
		{ID: FieldFolder, Type: tlv.TypeBool},
	}},
}

// SchemaFor returns the schema registered for msgType.
func SchemaFor(msgType MessageType) (Schema, bool) {
	s, ok := schemas[msgType]
	return s, ok
}

// Validate checks known field types and required field presence. Unknown
// field ids are ignored.
func Validate(msgType MessageType, fields []tlv.Field) error {
	schema, ok := SchemaFor(msgType)
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownMessageType, uint32(msgType))
	}
	known := make(map[uint16]FieldSpec, len(schema.Fields))
	required := make(map[uint16]struct{})
	for _, spec := range schema.Fields {
		known[spec.ID] = spec
		if spec.Required {
			required[spec.ID] = struct{}{}
		}
	}
	for _, field := range fields {
		spec, ok := known[field.ID]
		if !ok {
			continue
		}
		if spec.Type != 0 && field.Type != spec.Type {
			return fmt.Errorf("%w: %s field %d", ErrFieldTypeMismatch, msgType, field.ID)
		}
		delete(required, field.ID)
	}
	for _, spec := range schema.Fields {
		if _, missing := required[spec.ID]; missing {
			return MissingFieldError{MessageType: msgType, FieldID: spec.ID}
		}
	}
	return nil
}
