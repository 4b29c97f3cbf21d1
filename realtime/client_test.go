package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeServer struct {
	*httptest.Server
	received chan ClientEvent
	conns    chan *websocket.Conn
	header   chan http.Header
}

func newFakeServer(t *testing.T) *fakeServer {
	fs := &fakeServer{
		received: make(chan ClientEvent, 16),
		conns:    make(chan *websocket.Conn, 1),
		header:   make(chan http.Header, 1),
	}
	upgrader := websocket.Upgrader{}
	fs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := r.Header.Clone()
		h.Set("X-Model", r.URL.Query().Get("model"))
		fs.header <- h
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		fs.conns <- ws
		for {
			var ev ClientEvent
			if err := ws.ReadJSON(&ev); err != nil {
				return
			}
			fs.received <- ev
		}
	}))
	t.Cleanup(fs.Close)
	return fs
}

func (fs *fakeServer) wsURL() string {
	return "ws" + strings.TrimPrefix(fs.URL, "http")
}

func TestDialer_ConnectSendsCredentials(t *testing.T) {
	fs := newFakeServer(t)
	d := NewDialer(Options{URL: fs.wsURL(), Model: "gpt-realtime"})

	conn, err := d.Connect(context.Background(), "sk-test")
	require.NoError(t, err)
	defer conn.Close()

	h := <-fs.header
	assert.Equal(t, "Bearer sk-test", h.Get("Authorization"))
	assert.Equal(t, "gpt-realtime", h.Get("X-Model"))
}

func TestDialer_MissingKey(t *testing.T) {
	d := NewDialer(Options{})
	_, err := d.Connect(context.Background(), " ")
	assert.ErrorIs(t, err, ErrMissingAPIKey)
}

func TestConn_SendAndReceive(t *testing.T) {
	fs := newFakeServer(t)
	dumpPath := filepath.Join(t.TempDir(), "events.json")
	d := NewDialer(Options{URL: fs.wsURL(), Dumper: NewFileDumper(dumpPath)})

	conn, err := d.Connect(context.Background(), "sk-test")
	require.NoError(t, err)
	defer conn.Close()
	server := <-fs.conns

	require.NoError(t, conn.Send(CommitAudio()))
	select {
	case ev := <-fs.received:
		assert.Equal(t, "input_audio_buffer.commit", ev.Type)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not receive event")
	}

	require.NoError(t, server.WriteMessage(websocket.TextMessage, []byte(`{"type":"response.done","event_id":"e1"}`)))
	select {
	case ev := <-conn.Events():
		assert.Equal(t, EventResponseDone, ev.Kind)
		assert.Equal(t, "e1", ev.EventID)
	case <-time.After(2 * time.Second):
		t.Fatal("client did not receive event")
	}

	data, err := os.ReadFile(dumpPath)
	require.NoError(t, err)
	var dumped map[string]any
	require.NoError(t, json.Unmarshal(data, &dumped))
	assert.Equal(t, "response.done", dumped["type"])
}

func TestConn_RemoteCloseEndsStream(t *testing.T) {
	fs := newFakeServer(t)
	conn, err := NewDialer(Options{URL: fs.wsURL()}).Connect(context.Background(), "sk-test")
	require.NoError(t, err)
	server := <-fs.conns

	require.NoError(t, server.Close())

	select {
	case _, ok := <-conn.Events():
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("event stream was not closed")
	}
	assert.Error(t, conn.Err())
	assert.NoError(t, conn.Close())
}

func TestConn_LocalCloseIsClean(t *testing.T) {
	fs := newFakeServer(t)
	conn, err := NewDialer(Options{URL: fs.wsURL()}).Connect(context.Background(), "sk-test")
	require.NoError(t, err)
	<-fs.conns

	require.NoError(t, conn.Close())
	assert.NoError(t, conn.Close())

	for range conn.Events() {
	}
	assert.NoError(t, conn.Err())
	assert.ErrorIs(t, conn.Send(CreateResponse()), ErrClosed)
}
