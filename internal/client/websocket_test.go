package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/amoylab/janus/internal/common/cnst"
	"github.com/amoylab/janus/internal/transport"
)

// fakeBrowser answers a handful of methods over a real websocket.
func fakeBrowser(t *testing.T) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			req := gjson.ParseBytes(data)
			id := req.Get("id").Raw
			var out []string
			switch req.Get("method").Str {
			case cnst.MethodBrowserGetVersion:
				out = append(out, `{"id":`+id+`,"result":{"product":"Firefox/95.0"}}`)
			case cnst.MethodAttachToTarget:
				out = append(out, `{"id":`+id+`,"result":{"sessionId":"S1"}}`)
			case "Page.enable":
				sid := req.Get("sessionId").Str
				out = append(out,
					`{"method":"Page.loadEventFired","params":{"timestamp":1},"sessionId":"`+sid+`"}`,
					`{"id":`+id+`,"result":{},"sessionId":"`+sid+`"}`)
			default:
				out = append(out, `{"id":`+id+`,"error":{"code":-32601,"message":"not found"}}`)
			}
			for _, frame := range out {
				if err := conn.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
					return
				}
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestClient_OverWebSocket(t *testing.T) {
	srv := fakeBrowser(t)
	url := "ws" + strings.TrimPrefix(srv.URL, "http")

	c := New(zap.NewNop(), WithTransport(transport.WebSocketFactory(zap.NewNop(), transport.WebSocketOptions{})))
	ctx := context.Background()
	require.NoError(t, c.Connect(ctx, url))
	defer func() { require.NoError(t, c.Disconnect()) }()

	v, err := c.Call(ctx, "", cnst.MethodBrowserGetVersion, nil, 0)
	require.NoError(t, err)
	assert.Equal(t, "Firefox/95.0", gjson.GetBytes(v, "product").Str)

	sid, err := c.Attach(ctx, "T1")
	require.NoError(t, err)
	require.Equal(t, "S1", sid)

	sub, err := c.Subscribe(ctx, sid, "Page.*")
	require.NoError(t, err)
	_, err = c.Call(ctx, sid, "Page.enable", nil, 0)
	require.NoError(t, err)
	assert.Equal(t, "Page.loadEventFired", nextEvent(t, sub).Method)

	_, err = c.Call(ctx, "", "Nope.nothing", nil, 0)
	var remote *RemoteError
	require.ErrorAs(t, err, &remote)
	assert.Equal(t, int64(-32601), remote.Code)
}
