package encoding

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/vmihailenco/msgpack/v5"
	"github.com/vmihailenco/msgpack/v5/msgpcode"
)

// Content types understood by Decode and produced by Encode.
const (
	ContentTypeJSON    = "application/json"
	ContentTypeMsgpack = "application/msgpack"
)

var (
	// ErrInvalidFormat is returned when a body cannot be decoded.
	ErrInvalidFormat = errors.New("encoding: invalid format")
	// ErrEmptyBody is returned when there is nothing to decode.
	ErrEmptyBody = errors.New("encoding: empty body")
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// IsMsgpack reports whether contentType names a msgpack media type.
func IsMsgpack(contentType string) bool {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	switch strings.ToLower(mt) {
	case ContentTypeMsgpack, "application/x-msgpack", "application/vnd.msgpack":
		return true
	}
	return false
}

// Decode decodes body according to contentType. Anything that is not a
// msgpack media type is treated as JSON, matching clients that always
// expect a JSON reply regardless of the declared type.
//
// Objects decode to *Object, arrays to []any, numbers to float64.
func Decode(contentType string, body []byte) (any, error) {
	if IsMsgpack(contentType) {
		return DecodeMsgpack(body)
	}
	return DecodeJSON(body)
}

// DecodeJSON decodes a JSON document, preserving object key order.
func DecodeJSON(data []byte) (any, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, ErrEmptyBody
	}

	iter := json.BorrowIterator(data)
	defer json.ReturnIterator(iter)

	v := readJSON(iter)
	if iter.Error != nil && iter.Error != io.EOF {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFormat, iter.Error)
	}
	// Only whitespace may follow the value. Peeking at the end of input
	// leaves io.EOF behind; anything else is trailing content.
	if iter.Error == nil {
		iter.WhatIsNext()
		if iter.Error == nil {
			return nil, fmt.Errorf("%w: trailing data after JSON value", ErrInvalidFormat)
		}
	}
	return v, nil
}

func readJSON(iter *jsoniter.Iterator) any {
	switch iter.WhatIsNext() {
	case jsoniter.ObjectValue:
		obj := NewObject()
		iter.ReadObjectCB(func(it *jsoniter.Iterator, key string) bool {
			obj.Set(key, readJSON(it))
			return it.Error == nil
		})
		return obj
	case jsoniter.ArrayValue:
		arr := []any{}
		iter.ReadArrayCB(func(it *jsoniter.Iterator) bool {
			arr = append(arr, readJSON(it))
			return it.Error == nil
		})
		return arr
	case jsoniter.StringValue:
		return iter.ReadString()
	case jsoniter.NumberValue:
		return iter.ReadFloat64()
	case jsoniter.BoolValue:
		return iter.ReadBool()
	case jsoniter.NilValue:
		iter.ReadNil()
		return nil
	default:
		iter.ReportError("decode", "unexpected token")
		return nil
	}
}

// DecodeMsgpack decodes a msgpack document, preserving map key order.
func DecodeMsgpack(data []byte) (any, error) {
	if len(data) == 0 {
		return nil, ErrEmptyBody
	}
	dec := msgpack.NewDecoder(bytes.NewReader(data))
	v, err := readMsgpack(dec)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}
	return v, nil
}

func readMsgpack(dec *msgpack.Decoder) (any, error) {
	code, err := dec.PeekCode()
	if err != nil {
		return nil, err
	}

	switch {
	case msgpcode.IsFixedMap(code) || code == msgpcode.Map16 || code == msgpcode.Map32:
		n, err := dec.DecodeMapLen()
		if err != nil {
			return nil, err
		}
		obj := NewObject()
		for i := 0; i < n; i++ {
			k, err := dec.DecodeInterface()
			if err != nil {
				return nil, err
			}
			v, err := readMsgpack(dec)
			if err != nil {
				return nil, err
			}
			key, ok := k.(string)
			if !ok {
				key = fmt.Sprint(k)
			}
			obj.Set(key, v)
		}
		return obj, nil

	case msgpcode.IsFixedArray(code) || code == msgpcode.Array16 || code == msgpcode.Array32:
		n, err := dec.DecodeArrayLen()
		if err != nil {
			return nil, err
		}
		arr := make([]any, 0, max(n, 0))
		for i := 0; i < n; i++ {
			v, err := readMsgpack(dec)
			if err != nil {
				return nil, err
			}
			arr = append(arr, v)
		}
		return arr, nil
	}

	v, err := dec.DecodeInterface()
	if err != nil {
		return nil, err
	}
	return normalizeNumber(v), nil
}

// normalizeNumber widens msgpack's sized integers and floats to float64 so
// both codecs hand callers the same types.
func normalizeNumber(v any) any {
	switch n := v.(type) {
	case int8:
		return float64(n)
	case int16:
		return float64(n)
	case int32:
		return float64(n)
	case int64:
		return float64(n)
	case int:
		return float64(n)
	case uint8:
		return float64(n)
	case uint16:
		return float64(n)
	case uint32:
		return float64(n)
	case uint64:
		return float64(n)
	case uint:
		return float64(n)
	case float32:
		return float64(n)
	}
	return v
}

// Encode encodes v as msgpack when contentType asks for it and as JSON
// otherwise. It returns the content type actually used.
func Encode(contentType string, v any) ([]byte, string, error) {
	if IsMsgpack(contentType) {
		data, err := EncodeMsgpack(v)
		return data, ContentTypeMsgpack, err
	}
	data, err := EncodeJSON(v)
	return data, ContentTypeJSON + "; charset=utf-8", err
}

// EncodeJSON encodes v as JSON. *Object values keep their key order.
func EncodeJSON(v any) ([]byte, error) {
	stream := json.BorrowStream(nil)
	defer json.ReturnStream(stream)

	writeJSON(stream, v)
	if stream.Error != nil {
		return nil, stream.Error
	}

	out := make([]byte, len(stream.Buffer()))
	copy(out, stream.Buffer())
	return out, nil
}

func writeJSON(s *jsoniter.Stream, v any) {
	switch t := v.(type) {
	case *Object:
		if t == nil {
			s.WriteNil()
			return
		}
		s.WriteObjectStart()
		for i, k := range t.keys {
			if i > 0 {
				s.WriteMore()
			}
			s.WriteObjectField(k)
			writeJSON(s, t.values[k])
		}
		s.WriteObjectEnd()
	case []any:
		s.WriteArrayStart()
		for i, e := range t {
			if i > 0 {
				s.WriteMore()
			}
			writeJSON(s, e)
		}
		s.WriteArrayEnd()
	default:
		s.WriteVal(v)
	}
}

// EncodeMsgpack encodes v as msgpack. *Object values keep their key order.
func EncodeMsgpack(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	if err := writeMsgpack(enc, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeMsgpack(enc *msgpack.Encoder, v any) error {
	switch t := v.(type) {
	case *Object:
		if t == nil {
			return enc.EncodeNil()
		}
		if err := enc.EncodeMapLen(len(t.keys)); err != nil {
			return err
		}
		for _, k := range t.keys {
			if err := enc.EncodeString(k); err != nil {
				return err
			}
			if err := writeMsgpack(enc, t.values[k]); err != nil {
				return err
			}
		}
		return nil
	case []any:
		if err := enc.EncodeArrayLen(len(t)); err != nil {
			return err
		}
		for _, e := range t {
			if err := writeMsgpack(enc, e); err != nil {
				return err
			}
		}
		return nil
	default:
		return enc.Encode(v)
	}
}
