package protocol

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func TestDecode_Response(t *testing.T) {
	in, err := Decode([]byte(`{"id":1,"result":{"product":"Firefox/95.0"}}`))
	require.NoError(t, err)
	resp, ok := in.(*Response)
	require.True(t, ok)
	assert.Equal(t, int64(1), resp.ID)
	assert.Nil(t, resp.Error)
	assert.Equal(t, "Firefox/95.0", gjson.GetBytes(resp.Result, "product").String())
}

func TestDecode_ResponseWithSessionAndError(t *testing.T) {
	in, err := Decode([]byte(`{"id":7,"sessionId":"S1","error":{"code":-32601,"message":"'Foo.bar' wasn't found","data":"x"}}`))
	require.NoError(t, err)
	resp := in.(*Response)
	assert.Equal(t, "S1", resp.SessionID)
	require.NotNil(t, resp.Error)
	assert.Equal(t, int64(-32601), resp.Error.Code)
	assert.Equal(t, "'Foo.bar' wasn't found", resp.Error.Message)
	assert.JSONEq(t, `"x"`, string(resp.Error.Data))
	assert.Contains(t, resp.Error.Error(), "-32601")
}

func TestDecode_EmptyResultIsResponse(t *testing.T) {
	in, err := Decode([]byte(`{"id":3,"result":{}}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(in.(*Response).Result))
}

func TestDecode_Event(t *testing.T) {
	in, err := Decode([]byte(`{"method":"Page.loadEventFired","params":{"timestamp":1.5},"sessionId":"S2"}`))
	require.NoError(t, err)
	evt, ok := in.(*Event)
	require.True(t, ok)
	assert.Equal(t, "Page.loadEventFired", evt.Method)
	assert.Equal(t, "Page", evt.Domain())
	assert.Equal(t, "S2", evt.SessionID)
	assert.JSONEq(t, `{"timestamp":1.5}`, string(evt.Params))
}

func TestDecode_EventWithoutParams(t *testing.T) {
	in, err := Decode([]byte(`{"method":"Inspector.detached"}`))
	require.NoError(t, err)
	evt := in.(*Event)
	assert.Empty(t, evt.Params)
	assert.Empty(t, evt.SessionID)
}

func TestDecode_IDWinsOverMethod(t *testing.T) {
	// classification is strictly by the presence of id
	in, err := Decode([]byte(`{"id":4,"method":"Page.navigate","result":{}}`))
	require.NoError(t, err)
	_, ok := in.(*Response)
	assert.True(t, ok)
}

func TestDecode_Malformed(t *testing.T) {
	cases := map[string]string{
		"invalid json":        `{"id":1,`,
		"array":               `[1,2]`,
		"scalar":              `42`,
		"no id no method":     `{"params":{}}`,
		"string id":           `{"id":"1","result":{}}`,
		"fractional id":       `{"id":1.5,"result":{}}`,
		"response no payload": `{"id":1}`,
		"numeric method":      `{"method":5}`,
		"empty method":        `{"method":""}`,
		"error not object":    `{"id":1,"error":"boom"}`,
		"session not string":  `{"method":"A.b","sessionId":1}`,
	}
	for name, frame := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Decode([]byte(frame))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrMalformed)
			var cerr *CodecError
			require.True(t, errors.As(err, &cerr))
			assert.Equal(t, frame, string(cerr.Frame))
		})
	}
}

func TestEncode_FieldsMatchInput(t *testing.T) {
	req := Request{
		ID:        12,
		Method:    "DOM.querySelector",
		Params:    json.RawMessage(`{"nodeId":1,"selector":"body"}`),
		SessionID: "S1",
	}
	frame, err := Encode(req)
	require.NoError(t, err)

	parsed := gjson.ParseBytes(frame)
	assert.Equal(t, int64(12), parsed.Get("id").Int())
	assert.Equal(t, "DOM.querySelector", parsed.Get("method").String())
	assert.JSONEq(t, `{"nodeId":1,"selector":"body"}`, parsed.Get("params").Raw)
	assert.Equal(t, "S1", parsed.Get("sessionId").String())
}

func TestEncode_OmitsEmptyFields(t *testing.T) {
	frame, err := Encode(Request{ID: 1, Method: "Browser.getVersion"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":1,"method":"Browser.getVersion"}`, string(frame))
}

func TestEncode_Rejects(t *testing.T) {
	_, err := Encode(Request{ID: 1})
	assert.Error(t, err)
	_, err = Encode(Request{ID: 1, Method: "A.b", Params: json.RawMessage(`{`)})
	assert.Error(t, err)
}

func TestMarshalParams(t *testing.T) {
	raw, err := MarshalParams(nil)
	require.NoError(t, err)
	assert.Nil(t, raw)

	raw, err = MarshalParams(map[string]any{"url": "about:blank"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"url":"about:blank"}`, string(raw))

	raw, err = MarshalParams(json.RawMessage(`{"a":1}`))
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(raw))

	_, err = MarshalParams(make(chan int))
	assert.Error(t, err)
}

func TestDomainOf(t *testing.T) {
	assert.Equal(t, "Network", DomainOf("Network.requestWillBeSent"))
	assert.Equal(t, "Network", DomainOf("Network"))
	assert.Equal(t, "", DomainOf(".x"))
}
