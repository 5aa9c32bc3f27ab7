// Package stt manages one logical streaming connection to Deepgram per
// call. The connection is treated as intrinsically unreliable mid-call
// (idle timeouts, network blips): sends silently stop on a drop and the
// session is repaired before the next listening window. Frames are never
// buffered across a reconnect, since stale audio would desynchronize the
// transcript from the live conversation.
package stt

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
)

// ConnState tracks the lifecycle of the backend connection.
type ConnState int

const (
	StateDisconnected ConnState = iota
	StateConnecting
	StateConnected
)

const defaultURL = "wss://api.deepgram.com/v1/listen"

// defaultKeepAlive is shorter than Deepgram's ~10s idle-disconnect window,
// so pauses while the patient's reply is playing don't drop the session.
const defaultKeepAlive = 8 * time.Second

// EventHandler receives transcription events. Only final, non-empty
// transcript fragments are forwarded.
type EventHandler interface {
	OnTranscript(text string)
	OnUtteranceEnd()
}

type Config struct {
	APIKey            string
	URL               string        // defaults to the Deepgram live endpoint
	KeepAliveInterval time.Duration // defaults to 8s
}

// Session owns the connection handle and state flag; callers only invoke
// operations, they never mutate state directly.
type Session struct {
	cfg     Config
	handler EventHandler

	mu    sync.Mutex
	conn  *websocket.Conn
	state ConnState
}

func NewSession(cfg Config, handler EventHandler) *Session {
	if cfg.URL == "" {
		cfg.URL = defaultURL
	}
	if cfg.KeepAliveInterval <= 0 {
		cfg.KeepAliveInterval = defaultKeepAlive
	}
	return &Session{cfg: cfg, handler: handler}
}

// State reports the current connection state.
func (s *Session) State() ConnState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) listenURL() (string, error) {
	u, err := url.Parse(s.cfg.URL)
	if err != nil {
		return "", errors.Wrap(err, "parse deepgram url")
	}
	q := u.Query()
	q.Set("model", "nova-2")
	q.Set("language", "en-US")
	q.Set("encoding", "linear16")
	q.Set("sample_rate", "8000")
	q.Set("channels", "1")
	q.Set("punctuate", "true")
	q.Set("interim_results", "true")
	q.Set("utterance_end_ms", "1000")
	q.Set("vad_events", "true")
	q.Set("endpointing", "300")
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Connect dials the backend and, once the handshake succeeds, enters
// Connected and starts the read and keepalive loops.
func (s *Session) Connect(ctx context.Context) error {
	s.mu.Lock()
	s.state = StateConnecting
	s.mu.Unlock()

	listenURL, err := s.listenURL()
	if err != nil {
		s.markDisconnected(nil, false)
		return err
	}
	header := http.Header{}
	if s.cfg.APIKey != "" {
		header.Set("Authorization", "Token "+s.cfg.APIKey)
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, listenURL, header)
	if err != nil {
		s.markDisconnected(nil, false)
		return errors.Wrap(err, "dial deepgram")
	}

	s.mu.Lock()
	s.conn = conn
	s.state = StateConnected
	s.mu.Unlock()

	go s.readLoop(conn)
	go s.keepalive(conn)
	return nil
}

// EnsureConnected repairs a dropped connection before the next listening
// window. Closing the stale handle is best-effort; its failure is ignored.
func (s *Session) EnsureConnected(ctx context.Context) error {
	s.mu.Lock()
	if s.state == StateConnected {
		s.mu.Unlock()
		return nil
	}
	stale := s.conn
	s.conn = nil
	s.mu.Unlock()

	if stale != nil {
		stale.Close()
	}
	log.Println("[stt] reconnecting to Deepgram")
	return s.Connect(ctx)
}

// SendAudio forwards one PCM frame. No-op unless Connected; a send failure
// flips the session to Disconnected and is not surfaced per frame.
func (s *Session) SendAudio(frame []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateConnected || s.conn == nil {
		return
	}
	if err := s.conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
		s.markDisconnectedLocked(s.conn)
	}
}

// Close tears the session down, requesting a graceful stream finish.
// All errors on the way out are ignored.
func (s *Session) Close() {
	s.mu.Lock()
	s.state = StateDisconnected
	conn := s.conn
	s.conn = nil
	s.mu.Unlock()

	if conn == nil {
		return
	}
	conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"CloseStream"}`))
	conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "done"))
	conn.Close()
}

type liveMessage struct {
	Type    string `json:"type"`
	IsFinal bool   `json:"is_final"`
	Channel struct {
		Alternatives []struct {
			Transcript string `json:"transcript"`
		} `json:"alternatives"`
	} `json:"channel"`
}

func (s *Session) readLoop(conn *websocket.Conn) {
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			s.markDisconnected(conn, true)
			return
		}

		var m liveMessage
		if err := json.Unmarshal(msg, &m); err != nil {
			continue
		}
		switch m.Type {
		case "Results":
			if !m.IsFinal || len(m.Channel.Alternatives) == 0 {
				continue
			}
			text := strings.TrimSpace(m.Channel.Alternatives[0].Transcript)
			if text != "" {
				s.handler.OnTranscript(text)
			}
		case "UtteranceEnd":
			s.handler.OnUtteranceEnd()
		}
	}
}

// keepalive pings Deepgram while this connection is current so idle
// periods (patient audio playing, no inbound speech) don't drop it.
func (s *Session) keepalive(conn *websocket.Conn) {
	ticker := time.NewTicker(s.cfg.KeepAliveInterval)
	defer ticker.Stop()
	for range ticker.C {
		s.mu.Lock()
		if s.state != StateConnected || s.conn != conn {
			s.mu.Unlock()
			return
		}
		err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"KeepAlive"}`))
		if err != nil {
			s.markDisconnectedLocked(conn)
			s.mu.Unlock()
			return
		}
		s.mu.Unlock()
	}
}

func (s *Session) markDisconnected(conn *websocket.Conn, logNotice bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if conn != nil && s.conn != conn {
		// A newer connection already replaced this one.
		return
	}
	if !logNotice {
		s.state = StateDisconnected
		return
	}
	s.markDisconnectedLocked(conn)
}

// markDisconnectedLocked logs only on the transition out of Connected,
// so a burst of failed sends produces one notice.
func (s *Session) markDisconnectedLocked(conn *websocket.Conn) {
	if conn != nil && s.conn != conn {
		return
	}
	if s.state == StateConnected {
		log.Println("[stt] Deepgram connection lost, will reconnect before next turn")
	}
	s.state = StateDisconnected
}
