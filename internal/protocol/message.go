package protocol

import (
	"fmt"
	"io"

	"github.com/danmuck/apptree/internal/protocol/frame"
	"github.com/danmuck/apptree/internal/protocol/tlv"
)

// MessageType identifies a store operation on the wire.
type MessageType uint32

const (
	MessageGet         MessageType = 1
	MessageSet         MessageType = 2
	MessageCellLoad    MessageType = 3
	MessageCellStore   MessageType = 4
	MessageArrayLen    MessageType = 5
	MessageArrayIndex  MessageType = 6
	MessageArraySlice  MessageType = 7
	MessageArraySet    MessageType = 8
	MessageCellUpdate  MessageType = 9
	MessageArrayUpdate MessageType = 10
	MessageResult      MessageType = 100
)

func (m MessageType) String() string {
	switch m {
	case MessageGet:
		return "get"
	case MessageSet:
		return "set"
	case MessageCellLoad:
		return "cell.load"
	case MessageCellStore:
		return "cell.store"
	case MessageArrayLen:
		return "array.len"
	case MessageArrayIndex:
		return "array.index"
	case MessageArraySlice:
		return "array.slice"
	case MessageArraySet:
		return "array.set"
	case MessageCellUpdate:
		return "cell.update"
	case MessageArrayUpdate:
		return "array.update"
	case MessageResult:
		return "result"
	default:
		return fmt.Sprintf("message(%d)", uint32(m))
	}
}

// Field ids shared by every message type.
const (
	FieldCaller  uint16 = 1
	FieldName    uint16 = 2
	FieldValue   uint16 = 3
	FieldIndex   uint16 = 4
	FieldLo      uint16 = 5
	FieldHi      uint16 = 6
	FieldExpect  uint16 = 7
	FieldStatus  uint16 = 10
	FieldMessage uint16 = 11
	FieldFolder  uint16 = 12
)

// Status is the outcome carried by a result message.
type Status uint8

const (
	StatusOK Status = iota
	StatusNotFound
	StatusReadOnly
	StatusInvalidName
	StatusKindMismatch
	StatusOutOfRange
	StatusUnsupported
	StatusUnauthorized
	StatusInternal
	StatusConflict
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusNotFound:
		return "not_found"
	case StatusReadOnly:
		return "read_only"
	case StatusInvalidName:
		return "invalid_name"
	case StatusKindMismatch:
		return "kind_mismatch"
	case StatusOutOfRange:
		return "out_of_range"
	case StatusUnsupported:
		return "unsupported"
	case StatusUnauthorized:
		return "unauthorized"
	case StatusConflict:
		return "conflict"
	default:
		return "internal"
	}
}

// Request is one store operation issued by a caller. Name is the raw
// (possibly relative) name for get/set and the absolute cell key otherwise.
// Expect is the value an update saw before computing Value.
type Request struct {
	ID     uint64
	Type   MessageType
	Caller string
	Name   string
	Value  any
	Expect any
	Index  int64
	Lo     int64
	Hi     int64
}

// Response answers the request with the same ID. Folder marks a Value
// that is a subtree listing rather than a single stored map.
type Response struct {
	ID      uint64
	Status  Status
	Message string
	Value   any
	Folder  bool
}

// WriteRequest frames req with token as the auth block.
func WriteRequest(w io.Writer, req Request, token []byte, limits frame.Limits) error {
	fields := []tlv.Field{
		tlv.String(FieldCaller, req.Caller),
		tlv.String(FieldName, req.Name),
	}
	switch req.Type {
	case MessageSet, MessageCellStore, MessageArraySet:
		v, err := EncodeValue(FieldValue, req.Value)
		if err != nil {
			return err
		}
		fields = append(fields, v)
	case MessageCellUpdate, MessageArrayUpdate:
		v, err := EncodeValue(FieldValue, req.Value)
		if err != nil {
			return err
		}
		expect, err := EncodeValue(FieldExpect, req.Expect)
		if err != nil {
			return err
		}
		fields = append(fields, v, expect)
	}
	switch req.Type {
	case MessageArrayIndex, MessageArraySet, MessageArrayUpdate:
		fields = append(fields, tlv.I64(FieldIndex, req.Index))
	case MessageArraySlice:
		fields = append(fields, tlv.I64(FieldLo, req.Lo), tlv.I64(FieldHi, req.Hi))
	}
	f := frame.New(req.ID, uint32(req.Type), 0, token, tlv.EncodeFields(fields))
	return frame.WriteFrame(w, f, limits)
}

// ReadRequest reads and validates one request frame. The auth block is
// returned for the caller to check.
func ReadRequest(r io.Reader, limits frame.Limits) (Request, []byte, error) {
	f, err := frame.ReadFrame(r, limits)
	if err != nil {
		return Request{}, nil, err
	}
	if err := frame.Check(f.Header); err != nil {
		return Request{}, nil, err
	}
	msgType := MessageType(f.Header.MessageType)
	fields, err := tlv.DecodeFields(f.Payload)
	if err != nil {
		return Request{}, nil, err
	}
	if err := Validate(msgType, fields); err != nil {
		return Request{}, nil, err
	}

	req := Request{ID: f.Header.MessageID, Type: msgType}
	for _, field := range fields {
		switch field.ID {
		case FieldCaller:
			req.Caller, err = field.AsString()
		case FieldName:
			req.Name, err = field.AsString()
		case FieldValue:
			req.Value, err = DecodeValue(field)
		case FieldExpect:
			req.Expect, err = DecodeValue(field)
		case FieldIndex:
			req.Index, err = field.AsI64()
		case FieldLo:
			req.Lo, err = field.AsI64()
		case FieldHi:
			req.Hi, err = field.AsI64()
		}
		if err != nil {
			return Request{}, nil, err
		}
	}
	return req, f.Auth, nil
}

// WriteResponse frames resp as a result message.
func WriteResponse(w io.Writer, resp Response, limits frame.Limits) error {
	fields := []tlv.Field{tlv.U8(FieldStatus, uint8(resp.Status))}
	if resp.Message != "" {
		fields = append(fields, tlv.String(FieldMessage, resp.Message))
	}
	if resp.Status == StatusOK {
		v, err := EncodeValue(FieldValue, resp.Value)
		if err != nil {
			return err
		}
		fields = append(fields, v)
		if resp.Folder {
			fields = append(fields, tlv.Bool(FieldFolder, true))
		}
	}
	flags := frame.FlagIsResponse
	if resp.Status != StatusOK {
		flags |= frame.FlagIsError
	}
	f := frame.New(resp.ID, uint32(MessageResult), flags, nil, tlv.EncodeFields(fields))
	return frame.WriteFrame(w, f, limits)
}

// ReadResponse reads one result message.
func ReadResponse(r io.Reader, limits frame.Limits) (Response, error) {
	f, err := frame.ReadFrame(r, limits)
	if err != nil {
		return Response{}, err
	}
	if err := frame.Check(f.Header); err != nil {
		return Response{}, err
	}
	if MessageType(f.Header.MessageType) != MessageResult {
		return Response{}, fmt.Errorf("%w: got %s", ErrMessageTypeMismatch, MessageType(f.Header.MessageType))
	}
	fields, err := tlv.DecodeFields(f.Payload)
	if err != nil {
		return Response{}, err
	}
	if err := Validate(MessageResult, fields); err != nil {
		return Response{}, err
	}

	resp := Response{ID: f.Header.MessageID}
	for _, field := range fields {
		switch field.ID {
		case FieldStatus:
			var s uint8
			s, err = field.AsU8()
			resp.Status = Status(s)
		case FieldMessage:
			resp.Message, err = field.AsString()
		case FieldValue:
			resp.Value, err = DecodeValue(field)
		case FieldFolder:
			resp.Folder, err = field.AsBool()
		}
		if err != nil {
			return Response{}, err
		}
	}
	return resp, nil
}
