// Package call orchestrates one live call: it ingests the Twilio media
// stream, drives the listen/respond cycle against the transcription
// session and the patient brain, and streams synthesized replies back.
package call

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	"github.com/voiceqa/patient-bot/audio"
	"github.com/voiceqa/patient-bot/llm"
	"github.com/voiceqa/patient-bot/output"
	"github.com/voiceqa/patient-bot/scenario"
	"github.com/voiceqa/patient-bot/stt"
	"github.com/voiceqa/patient-bot/transcript"
	"github.com/voiceqa/patient-bot/turn"
)

// Conn is the slice of a websocket connection the session needs; both
// gofiber and gorilla conns satisfy it.
type Conn interface {
	ReadMessage() (int, []byte, error)
	WriteJSON(v interface{}) error
	Close() error
}

// Transcriber is the streaming transcription session (see package stt).
type Transcriber interface {
	EnsureConnected(ctx context.Context) error
	SendAudio(frame []byte)
	Close()
}

// ReplyGenerator produces the patient's next line.
type ReplyGenerator interface {
	Reply(ctx context.Context, history []transcript.Turn, utterance string) (string, error)
}

// Synthesizer turns a reply into compressed speech audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// Deps are the collaborators wired into a call at accept time.
type Deps struct {
	NewTranscriber func(handler stt.EventHandler) Transcriber
	Replies        ReplyGenerator
	Synth          Synthesizer
	Sink           transcript.Sink
}

type twilioEvent struct {
	Event string `json:"event"` // connected, start, media, mark, stop
	Media struct {
		Payload string `json:"payload"` // base64 mulaw
	} `json:"media"`
	Start struct {
		CallSid   string `json:"callSid"`
		StreamSid string `json:"streamSid"`
	} `json:"start"`
}

type Call struct {
	conn     Conn
	sc       scenario.Scenario
	stt      Transcriber
	detector *turn.Detector
	replies  ReplyGenerator
	synth    Synthesizer
	sink     transcript.Sink
	logger   *transcript.Logger

	mu    sync.Mutex
	pacer *output.Pacer

	started atomic.Bool // greeting has been played; media accepted
	ended   atomic.Bool // call is terminating

	turnTimeout time.Duration
	settleDelay time.Duration // pause before the greeting so the remote side settles
	streamWait  time.Duration // how long to wait for the start event
	endGrace    time.Duration // lets the final utterance finish playing
	frameDelay  time.Duration // playback pacing; tests shorten it
	convert     func(mp3 []byte) ([]byte, error)
}

// detectorEvents feeds transcription events into the turn detector.
type detectorEvents struct {
	d *turn.Detector
}

func (e detectorEvents) OnTranscript(text string) { e.d.AddFragment(text) }
func (e detectorEvents) OnUtteranceEnd()          { e.d.SignalEndOfTurn() }

func New(conn Conn, sc scenario.Scenario, deps Deps) *Call {
	detector := turn.NewDetector()
	return &Call{
		conn:        conn,
		sc:          sc,
		stt:         deps.NewTranscriber(detectorEvents{detector}),
		detector:    detector,
		replies:     deps.Replies,
		synth:       deps.Synth,
		sink:        deps.Sink,
		logger:      transcript.NewLogger(sc.ID, sc.Name),
		turnTimeout: turn.DefaultTimeout,
		settleDelay: time.Second,
		streamWait:  5 * time.Second,
		endGrace:    3 * time.Second,
		convert:     audio.MP3ToMulaw,
	}
}

// Run drives the call until the stream stops, the remote side hangs up,
// or the patient says goodbye. It always tears down and persists the
// transcript, even when transcription setup fails outright.
func (c *Call) Run(ctx context.Context) error {
	defer c.teardown()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := c.stt.EnsureConnected(ctx); err != nil {
		return errors.Wrap(err, "transcription session setup")
	}

	go c.sendGreeting(ctx)
	go c.listenLoop(ctx)
	c.ingest()
	return nil
}

// ingest dispatches inbound transport messages. Unknown kinds are
// ignored for forward compatibility with the stream protocol.
func (c *Call) ingest() {
	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			if !c.ended.Load() {
				log.Printf("[call] stream read ended: %v", err)
			}
			return
		}
		if c.ended.Load() {
			return
		}

		var ev twilioEvent
		if err := json.Unmarshal(msg, &ev); err != nil {
			log.Printf("[call] bad stream message: %v", err)
			continue
		}

		switch ev.Event {
		case "connected":
			log.Println("[call] stream connected")
		case "start":
			log.Printf("[call] stream started: %s", ev.Start.StreamSid)
			c.logger.SetCallSid(ev.Start.CallSid)
			c.logger.SetMetadata("stream_sid", ev.Start.StreamSid)
			c.setStream(ev.Start.StreamSid)
		case "media":
			// Pre-greeting noise must not be transcribed as a turn.
			if !c.started.Load() {
				continue
			}
			frame, err := base64.StdEncoding.DecodeString(ev.Media.Payload)
			if err != nil {
				continue
			}
			pcm, err := audio.Decode(frame)
			if err != nil {
				continue
			}
			c.stt.SendAudio(pcm)
		case "mark":
			// Playback-complete marker; nothing to do.
		case "stop":
			log.Println("[call] stream stopped")
			return
		}
	}
}

func (c *Call) setStream(streamSid string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pacer = output.NewPacer(streamSid, c.conn)
	if c.frameDelay > 0 {
		c.pacer.Delay = c.frameDelay
	}
}

func (c *Call) getPacer() *output.Pacer {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pacer
}

// sendGreeting plays the scenario's opening line once the transport has
// reported a stream id, then opens the media gate.
func (c *Call) sendGreeting(ctx context.Context) {
	deadline := time.Now().Add(c.streamWait)
	for c.getPacer() == nil {
		if ctx.Err() != nil || time.Now().After(deadline) {
			return
		}
		time.Sleep(100 * time.Millisecond)
	}
	select {
	case <-time.After(c.settleDelay):
	case <-ctx.Done():
		return
	}

	c.logger.LogTurn(transcript.SpeakerPatient, c.sc.FirstMessage)
	c.speak(ctx, c.sc.FirstMessage)
	c.started.Store(true)
}

// listenLoop serializes turn handling: at most one reply is generated,
// synthesized and played at a time.
func (c *Call) listenLoop(ctx context.Context) {
	for !c.ended.Load() && ctx.Err() == nil {
		if err := c.stt.EnsureConnected(ctx); err != nil {
			log.Printf("[call] transcription reconnect failed: %v", err)
		}
		text := c.detector.Wait(ctx, c.turnTimeout)
		if text == "" || c.ended.Load() || ctx.Err() != nil {
			continue
		}
		c.handleTurn(ctx, text)
	}
}

func (c *Call) handleTurn(ctx context.Context, agentText string) {
	history := c.logger.Turns()
	c.logger.LogTurn(transcript.SpeakerAgent, agentText)

	reply, err := c.replies.Reply(ctx, history, agentText)
	if err != nil {
		log.Printf("[call] reply generation failed: %v", err)
		return
	}
	c.logger.LogTurn(transcript.SpeakerPatient, reply)

	if llm.ShouldEndCall(reply) {
		c.ended.Store(true)
	}
	c.speak(ctx, reply)

	if c.ended.Load() {
		// Give the farewell time to play out before closing the stream.
		time.Sleep(c.endGrace)
		c.conn.Close()
	}
}

// speak synthesizes and plays one utterance. Synthesis or conversion
// failures skip this utterance and the call continues; a transport send
// failure ends the call.
func (c *Call) speak(ctx context.Context, text string) {
	mp3Bytes, err := c.synth.Synthesize(ctx, text)
	if err != nil {
		log.Printf("[call] speech synthesis failed: %v", err)
		return
	}
	mulaw, err := c.convert(mp3Bytes)
	if err != nil {
		log.Printf("[call] audio conversion failed, skipping playback: %v", err)
		return
	}
	pacer := c.getPacer()
	if pacer == nil {
		return
	}
	if err := pacer.Play(mulaw); err != nil {
		log.Printf("[call] playback aborted, transport gone: %v", err)
		c.ended.Store(true)
		c.conn.Close()
	}
}

func (c *Call) teardown() {
	c.ended.Store(true)
	c.stt.Close()
	c.conn.Close()

	path, err := c.sink.Save(c.logger.Record())
	if err != nil {
		log.Printf("[call] transcript save failed: %v", err)
		return
	}
	log.Printf("[call] complete, transcript: %s", path)
}
