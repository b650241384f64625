package encoding

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
)

func TestDecodeJSONPreservesKeyOrder(t *testing.T) {
	v, err := DecodeJSON([]byte(`{"zeta":"z","alpha":["a","b"],"mid":{"y":1,"x":true},"nil":null}`))
	require.NoError(t, err)

	obj, ok := v.(*Object)
	require.True(t, ok, "expected *Object, got %T", v)
	assert.Equal(t, []string{"zeta", "alpha", "mid", "nil"}, obj.Keys())

	alpha, _ := obj.Get("alpha")
	assert.Equal(t, []any{"a", "b"}, alpha)

	mid, _ := obj.Get("mid")
	midObj, ok := mid.(*Object)
	require.True(t, ok)
	assert.Equal(t, []string{"y", "x"}, midObj.Keys())
	y, _ := midObj.Get("y")
	assert.Equal(t, float64(1), y)

	n, ok := obj.Get("nil")
	assert.True(t, ok)
	assert.Nil(t, n)
}

func TestDecodeJSONEmptyKey(t *testing.T) {
	v, err := DecodeJSON([]byte(`{"":"blank","b":"x"}`))
	require.NoError(t, err)
	assert.Equal(t, []string{"", "b"}, v.(*Object).Keys())
}

func TestDecodeJSONErrors(t *testing.T) {
	_, err := DecodeJSON(nil)
	assert.ErrorIs(t, err, ErrEmptyBody)

	_, err = DecodeJSON([]byte("   "))
	assert.ErrorIs(t, err, ErrEmptyBody)

	_, err = DecodeJSON([]byte("<html>oops</html>"))
	assert.ErrorIs(t, err, ErrInvalidFormat)

	_, err = DecodeJSON([]byte(`{"a":`))
	assert.ErrorIs(t, err, ErrInvalidFormat)

	_, err = DecodeJSON([]byte(`{"success":true} trailing garbage`))
	assert.ErrorIs(t, err, ErrInvalidFormat)

	_, err = DecodeJSON([]byte(`{"a":1}{"b":2}`))
	assert.ErrorIs(t, err, ErrInvalidFormat)

	_, err = DecodeJSON([]byte(`3 4`))
	assert.ErrorIs(t, err, ErrInvalidFormat)
}

func TestDecodeJSONAllowsTrailingWhitespace(t *testing.T) {
	for _, body := range []string{"{\"a\":1}\n", " [1,2] \t", "3", "\"oops\"\r\n", "true"} {
		_, err := DecodeJSON([]byte(body))
		assert.NoError(t, err, "body %q", body)
	}
}

func TestDecodeMsgpackPreservesKeyOrder(t *testing.T) {
	obj := NewObject()
	obj.Set("success", false)
	msgs := NewObject()
	msgs.Set("email", []any{"Required", "Invalid format"})
	msgs.Set("age", int64(3))
	obj.Set("messages", msgs)

	data, err := EncodeMsgpack(obj)
	require.NoError(t, err)

	v, err := DecodeMsgpack(data)
	require.NoError(t, err)

	got := v.(*Object)
	assert.Equal(t, []string{"success", "messages"}, got.Keys())

	m, _ := got.Get("messages")
	gotMsgs := m.(*Object)
	assert.Equal(t, []string{"email", "age"}, gotMsgs.Keys())
	email, _ := gotMsgs.Get("email")
	assert.Equal(t, []any{"Required", "Invalid format"}, email)
	age, _ := gotMsgs.Get("age")
	assert.Equal(t, float64(3), age)
}

func TestDecodeMsgpackFromPlainMap(t *testing.T) {
	data, err := msgpack.Marshal(map[string]any{"success": true})
	require.NoError(t, err)

	v, err := Decode("application/x-msgpack", data)
	require.NoError(t, err)
	s, _ := v.(*Object).Get("success")
	assert.Equal(t, true, s)
}

func TestDecodeMsgpackErrors(t *testing.T) {
	_, err := DecodeMsgpack(nil)
	assert.ErrorIs(t, err, ErrEmptyBody)

	// fixmap announcing one entry with no payload
	_, err = DecodeMsgpack([]byte{0x81})
	assert.ErrorIs(t, err, ErrInvalidFormat)
}

func TestDecodeDispatchesOnContentType(t *testing.T) {
	tests := []struct {
		contentType string
		msgpack     bool
	}{
		{"application/json", false},
		{"application/json; charset=utf-8", false},
		{"text/html", false},
		{"", false},
		{"application/msgpack", true},
		{"application/x-msgpack", true},
		{"Application/MsgPack", true},
		{"application/vnd.msgpack", true},
	}

	for _, tt := range tests {
		t.Run(tt.contentType, func(t *testing.T) {
			assert.Equal(t, tt.msgpack, IsMsgpack(tt.contentType))
		})
	}
}

func TestEncodeJSONKeepsOrder(t *testing.T) {
	obj := NewObject()
	obj.Set("success", false)
	msgs := NewObject()
	msgs.Set("name", "Too short")
	msgs.Set("email", []any{"Required"})
	obj.Set("errors", msgs)

	data, err := EncodeJSON(obj)
	require.NoError(t, err)
	assert.Equal(t, `{"success":false,"errors":{"name":"Too short","email":["Required"]}}`, string(data))
}

func TestEncodeSelectsCodec(t *testing.T) {
	obj := NewObject()
	obj.Set("success", true)

	data, ct, err := Encode("application/msgpack", obj)
	require.NoError(t, err)
	assert.Equal(t, ContentTypeMsgpack, ct)
	v, err := DecodeMsgpack(data)
	require.NoError(t, err)
	s, _ := v.(*Object).Get("success")
	assert.Equal(t, true, s)

	data, ct, err = Encode("", obj)
	require.NoError(t, err)
	assert.Equal(t, "application/json; charset=utf-8", ct)
	assert.Equal(t, `{"success":true}`, string(data))
}

func TestObjectSetDeleteClone(t *testing.T) {
	obj := NewObject()
	obj.Set("a", 1)
	obj.Set("b", []any{"x"})
	obj.Set("c", 3)
	obj.Set("a", 10)

	assert.Equal(t, []string{"a", "b", "c"}, obj.Keys())
	a, _ := obj.Get("a")
	assert.Equal(t, 10, a)

	clone := obj.Clone()
	obj.Delete("b")
	obj.Delete("missing")

	assert.Equal(t, []string{"a", "c"}, obj.Keys())
	assert.Equal(t, 2, obj.Len())
	if diff := cmp.Diff([]string{"a", "b", "c"}, clone.Keys()); diff != "" {
		t.Errorf("clone keys changed (-want +got):\n%s", diff)
	}

	var nilObj *Object
	assert.Equal(t, 0, nilObj.Len())
	assert.Nil(t, nilObj.Keys())
	_, ok := nilObj.Get("x")
	assert.False(t, ok)
}
