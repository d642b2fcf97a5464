package stream

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/anypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/dgnsrekt/gexdex/internal/analyzer"
	"github.com/dgnsrekt/gexdex/internal/cache"
	"github.com/dgnsrekt/gexdex/internal/config"
	"github.com/dgnsrekt/gexdex/internal/provider"
)

func newTestService() *analyzer.Service {
	return analyzer.NewService(
		provider.NewSynthetic(config.DefaultSymbols(), 42, 60),
		cache.NewMemoryStore(),
		config.DefaultSymbols(),
		analyzer.Options{RiskFreeRate: 0.07, StrikesRange: 12, Budget: 5 * time.Second, CacheTTL: time.Minute},
		analyzer.NewMetrics(prometheus.NewRegistry()),
		zap.NewNop(),
	)
}

func TestParseGroup(t *testing.T) {
	symbols := config.DefaultSymbols()
	tests := []struct {
		group   string
		want    analyzer.Query
		wantErr bool
	}{
		{"NIFTY", analyzer.Query{Symbol: "NIFTY"}, false},
		{"banknifty/2", analyzer.Query{Symbol: "BANKNIFTY", ExpiryIndex: 2}, false},
		{"NIFTY/-1", analyzer.Query{}, true},
		{"NIFTY/x", analyzer.Query{}, true},
		{"SPX", analyzer.Query{}, true},
		{"", analyzer.Query{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.group, func(t *testing.T) {
			got, err := ParseGroup(tt.group, symbols)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidGroup)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEncoder_Protobuf(t *testing.T) {
	rep, err := newTestService().Analyze(context.Background(), analyzer.Query{Symbol: "NIFTY"})
	require.NoError(t, err)

	enc, err := NewEncoder()
	require.NoError(t, err)
	defer enc.Close()

	want := NewSnapshot("NIFTY", rep)
	frame, err := enc.EncodeProtobuf(want)
	require.NoError(t, err)

	got, err := enc.DecodeProtobuf(frame)
	require.NoError(t, err)
	assert.Equal(t, want.Symbol, got.Symbol)
	assert.Equal(t, want.ATM, got.ATM)
	assert.Equal(t, want.Totals, got.Totals)
	assert.Equal(t, want.Flow, got.Flow)
	assert.Equal(t, want.Levels, got.Levels)
	assert.True(t, want.GeneratedAt.Equal(got.GeneratedAt))
	assert.Len(t, got.Levels, len(rep.Result.Rows))

	_, err = enc.DecodeProtobuf(buildPongMessage(ProtocolProtobuf))
	assert.Error(t, err)
}

func TestFrames_EncodeOncePerProtocol(t *testing.T) {
	enc, err := NewEncoder()
	require.NoError(t, err)
	defer enc.Close()

	f := NewFrames(enc, Snapshot{Group: "NIFTY", Symbol: "NIFTY"})
	a, err := f.For(ProtocolJSON)
	require.NoError(t, err)
	b, err := f.For(ProtocolJSON)
	require.NoError(t, err)
	assert.Same(t, &a[0], &b[0])

	var msg struct {
		Type  string   `json:"type"`
		Group string   `json:"group"`
		Data  Snapshot `json:"data"`
	}
	require.NoError(t, json.Unmarshal(a, &msg))
	assert.Equal(t, "message", msg.Type)
	assert.Equal(t, "NIFTY", msg.Data.Symbol)
}

func startStream(t *testing.T) string {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())

	svc := newTestService()
	hub := NewHub(GroupValidator(svc.Symbols()), zap.NewNop())
	streamer, err := NewStreamer(hub, svc, 20*time.Millisecond, zap.NewNop())
	require.NoError(t, err)
	go hub.Run(ctx)
	go streamer.Run(ctx)

	srv := httptest.NewServer(hub)
	t.Cleanup(func() {
		cancel()
		srv.Close()
	})
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url, subprotocol string) *websocket.Conn {
	t.Helper()
	d := websocket.Dialer{Subprotocols: []string{subprotocol}}
	conn, resp, err := d.Dial(url, nil)
	require.NoError(t, err)
	assert.Equal(t, subprotocol, resp.Header.Get("Sec-Websocket-Protocol"))
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	return conn
}

func readJSON(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var msg map[string]any
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func TestStream_JSON(t *testing.T) {
	conn := dial(t, startStream(t), SubprotocolJSON)

	connected := readJSON(t, conn)
	assert.Equal(t, "connected", connected["event"])
	assert.NotEmpty(t, connected["connectionId"])

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"joinGroup","group":"SPX","ackId":1}`)))
	ack := readJSON(t, conn)
	assert.Equal(t, "ack", ack["type"])
	assert.Equal(t, false, ack["success"])
	assert.Contains(t, ack["error"], "unknown symbol")

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"joinGroup","group":"NIFTY","ackId":2}`)))

	var snapshot map[string]any
	var acked bool
	for snapshot == nil {
		msg := readJSON(t, conn)
		switch msg["type"] {
		case "ack":
			assert.Equal(t, float64(2), msg["ackId"])
			assert.Equal(t, true, msg["success"])
			acked = true
		case "message":
			snapshot = msg
		}
	}
	assert.Equal(t, "NIFTY", snapshot["group"])
	data := snapshot["data"].(map[string]any)
	assert.Equal(t, "NIFTY", data["symbol"])
	assert.NotEmpty(t, data["levels"])

	if !acked {
		// the ack may trail the first snapshot
		for {
			if msg := readJSON(t, conn); msg["type"] == "ack" {
				break
			}
		}
	}

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"ping"}`)))
	for {
		if msg := readJSON(t, conn); msg["type"] == "pong" {
			break
		}
	}
}

func TestStream_Protobuf(t *testing.T) {
	conn := dial(t, startStream(t), SubprotocolProtobuf)

	msgType, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.BinaryMessage, msgType)

	var connected anypb.Any
	require.NoError(t, proto.Unmarshal(data, &connected))
	assert.Equal(t, TypeSystem, connected.GetTypeUrl())
	var fields structpb.Struct
	require.NoError(t, proto.Unmarshal(connected.GetValue(), &fields))
	assert.Equal(t, "connected", fields.GetFields()["event"].GetStringValue())

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"joinGroup","group":"BANKNIFTY/1"}`)))

	enc, err := NewEncoder()
	require.NoError(t, err)
	defer enc.Close()

	for {
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)
		var frame anypb.Any
		require.NoError(t, proto.Unmarshal(data, &frame))
		if frame.GetTypeUrl() != TypeSnapshot {
			continue
		}
		snap, err := enc.DecodeProtobuf(data)
		require.NoError(t, err)
		assert.Equal(t, "BANKNIFTY/1", snap.Group)
		assert.Equal(t, "BANKNIFTY", snap.Symbol)
		assert.Greater(t, snap.UnderlyingPrice, 0.0)
		return
	}
}

func TestHub_ActiveGroups(t *testing.T) {
	hub := NewHub(nil, zap.NewNop())
	c := &Client{hub: hub, send: make(chan []byte, 1), done: make(chan struct{}), groups: map[string]bool{}, logger: zap.NewNop()}

	hub.JoinGroup(c, "NIFTY")
	assert.Empty(t, hub.ActiveGroups(), "unregistered clients cannot join")

	hub.clients[c] = true
	hub.JoinGroup(c, "NIFTY")
	hub.JoinGroup(c, "BANKNIFTY")
	assert.Equal(t, []string{"BANKNIFTY", "NIFTY"}, hub.ActiveGroups())

	hub.LeaveGroup(c, "NIFTY")
	assert.Equal(t, []string{"BANKNIFTY"}, hub.ActiveGroups())

	hub.remove(c)
	assert.Empty(t, hub.ActiveGroups())
	assert.False(t, c.trySend([]byte("x")))
}
