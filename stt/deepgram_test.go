package stt

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingHandler struct {
	transcripts chan string
	ends        chan struct{}
}

func newRecordingHandler() *recordingHandler {
	return &recordingHandler{
		transcripts: make(chan string, 16),
		ends:        make(chan struct{}, 16),
	}
}

func (h *recordingHandler) OnTranscript(text string) { h.transcripts <- text }
func (h *recordingHandler) OnUtteranceEnd()          { h.ends <- struct{}{} }

// fakeBackend upgrades every request and hands the server-side conn to the test.
type fakeBackend struct {
	srv   *httptest.Server
	conns chan *websocket.Conn
}

func newFakeBackend(t *testing.T) *fakeBackend {
	t.Helper()
	b := &fakeBackend{conns: make(chan *websocket.Conn, 4)}
	upgrader := websocket.Upgrader{}
	b.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		b.conns <- conn
	}))
	t.Cleanup(b.srv.Close)
	return b
}

func (b *fakeBackend) wsURL() string {
	return "ws" + strings.TrimPrefix(b.srv.URL, "http")
}

func (b *fakeBackend) accept(t *testing.T) *websocket.Conn {
	t.Helper()
	select {
	case conn := <-b.conns:
		return conn
	case <-time.After(2 * time.Second):
		t.Fatal("backend never saw a connection")
		return nil
	}
}

func newTestSession(t *testing.T, b *fakeBackend, h EventHandler) *Session {
	t.Helper()
	s := NewSession(Config{URL: b.wsURL(), KeepAliveInterval: time.Hour}, h)
	require.NoError(t, s.Connect(context.Background()))
	t.Cleanup(s.Close)
	return s
}

func TestConnectEntersConnectedState(t *testing.T) {
	b := newFakeBackend(t)
	s := newTestSession(t, b, newRecordingHandler())
	assert.Equal(t, StateConnected, s.State())
	b.accept(t)
}

func TestFinalTranscriptsForwarded(t *testing.T) {
	b := newFakeBackend(t)
	h := newRecordingHandler()
	newTestSession(t, b, h)
	server := b.accept(t)

	messages := []string{
		`{"type":"Results","is_final":false,"channel":{"alternatives":[{"transcript":"I nee"}]}}`,
		`{"type":"Results","is_final":true,"channel":{"alternatives":[{"transcript":"I need"}]}}`,
		`{"type":"Results","is_final":true,"channel":{"alternatives":[{"transcript":"   "}]}}`,
		`{"type":"Results","is_final":true,"channel":{"alternatives":[{"transcript":"an appointment"}]}}`,
		`{"type":"UtteranceEnd"}`,
	}
	for _, m := range messages {
		require.NoError(t, server.WriteMessage(websocket.TextMessage, []byte(m)))
	}

	assert.Equal(t, "I need", <-h.transcripts)
	assert.Equal(t, "an appointment", <-h.transcripts)
	select {
	case <-h.ends:
	case <-time.After(2 * time.Second):
		t.Fatal("utterance end never delivered")
	}
	assert.Empty(t, h.transcripts, "interim and blank fragments must be dropped")
}

func TestSendAudioForwardsFrames(t *testing.T) {
	b := newFakeBackend(t)
	s := newTestSession(t, b, newRecordingHandler())
	server := b.accept(t)

	s.SendAudio([]byte{1, 2, 3, 4})

	mt, frame, err := server.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.BinaryMessage, mt)
	assert.Equal(t, []byte{1, 2, 3, 4}, frame)
}

func TestSendAudioSilentAfterBackendDrop(t *testing.T) {
	b := newFakeBackend(t)
	s := newTestSession(t, b, newRecordingHandler())
	server := b.accept(t)
	server.Close()

	require.Eventually(t, func() bool {
		return s.State() == StateDisconnected
	}, 2*time.Second, 10*time.Millisecond)

	// Must not panic or error; frames are dropped, never queued.
	s.SendAudio([]byte{9, 9})
	s.SendAudio([]byte{9, 9})
	assert.Equal(t, StateDisconnected, s.State())
}

func TestEnsureConnectedRepairsDroppedSession(t *testing.T) {
	b := newFakeBackend(t)
	s := newTestSession(t, b, newRecordingHandler())
	first := b.accept(t)
	first.Close()

	require.Eventually(t, func() bool {
		return s.State() == StateDisconnected
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, s.EnsureConnected(context.Background()))
	assert.Equal(t, StateConnected, s.State())

	second := b.accept(t)
	s.SendAudio([]byte{7})
	_, frame, err := second.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, []byte{7}, frame)
}

func TestEnsureConnectedNoopWhenHealthy(t *testing.T) {
	b := newFakeBackend(t)
	s := newTestSession(t, b, newRecordingHandler())
	b.accept(t)

	require.NoError(t, s.EnsureConnected(context.Background()))
	select {
	case <-b.conns:
		t.Fatal("healthy session must not redial")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestKeepalivePingsBackend(t *testing.T) {
	b := newFakeBackend(t)
	s := NewSession(Config{URL: b.wsURL(), KeepAliveInterval: 30 * time.Millisecond}, newRecordingHandler())
	require.NoError(t, s.Connect(context.Background()))
	t.Cleanup(s.Close)
	server := b.accept(t)

	mt, msg, err := server.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.TextMessage, mt)
	assert.JSONEq(t, `{"type":"KeepAlive"}`, string(msg))
}

func TestConnectFailureReportsError(t *testing.T) {
	s := NewSession(Config{URL: "ws://127.0.0.1:1"}, newRecordingHandler())
	err := s.Connect(context.Background())
	assert.Error(t, err)
	assert.Equal(t, StateDisconnected, s.State())
}

func TestListenURLCarriesStreamParameters(t *testing.T) {
	s := NewSession(Config{}, newRecordingHandler())
	u, err := s.listenURL()
	require.NoError(t, err)
	assert.Contains(t, u, "wss://api.deepgram.com/v1/listen?")
	for _, param := range []string{
		"encoding=linear16",
		"sample_rate=8000",
		"channels=1",
		"utterance_end_ms=1000",
		"interim_results=true",
	} {
		assert.Contains(t, u, param)
	}
}
