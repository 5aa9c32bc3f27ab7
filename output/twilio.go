// Package output streams synthesized mulaw audio back over a Twilio media
// stream, paced so the outbound buffer never fills faster than real time.
package output

import (
	"encoding/base64"
	"time"
)

// FrameSize is 80ms of 8kHz mulaw audio per media message.
const FrameSize = 640

// frameDelay is the pause between frames. Kept well under the 80ms
// playback length so frames still arrive ahead of the playhead.
const frameDelay = 10 * time.Millisecond

// FrameSender is satisfied by both gofiber and gorilla websocket conns.
type FrameSender interface {
	WriteJSON(v interface{}) error
}

type mediaMessage struct {
	Event     string       `json:"event"`
	StreamSid string       `json:"streamSid"`
	Media     mediaPayload `json:"media"`
}

type mediaPayload struct {
	Payload string `json:"payload"`
}

type markMessage struct {
	Event     string      `json:"event"`
	StreamSid string      `json:"streamSid"`
	Mark      markPayload `json:"mark"`
}

type markPayload struct {
	Name string `json:"name"`
}

// Pacer slices mulaw audio into transport frames for one media stream.
type Pacer struct {
	streamSid string
	sender    FrameSender

	// Delay between frames; tests shorten it.
	Delay time.Duration
}

func NewPacer(streamSid string, sender FrameSender) *Pacer {
	return &Pacer{streamSid: streamSid, sender: sender, Delay: frameDelay}
}

// Play sends the buffer as base64 media frames followed by a single
// "audio_complete" mark. A send failure means the transport is gone:
// remaining frames are dropped and the error propagates so the call
// session can tear down.
func (p *Pacer) Play(mulaw []byte) error {
	for i := 0; i < len(mulaw); i += FrameSize {
		end := i + FrameSize
		if end > len(mulaw) {
			end = len(mulaw)
		}
		msg := mediaMessage{
			Event:     "media",
			StreamSid: p.streamSid,
			Media:     mediaPayload{Payload: base64.StdEncoding.EncodeToString(mulaw[i:end])},
		}
		if err := p.sender.WriteJSON(msg); err != nil {
			return err
		}
		time.Sleep(p.Delay)
	}
	return p.sender.WriteJSON(markMessage{
		Event:     "mark",
		StreamSid: p.streamSid,
		Mark:      markPayload{Name: "audio_complete"},
	})
}
