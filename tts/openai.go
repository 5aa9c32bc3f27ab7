// Package tts synthesizes the patient's speech. OpenAI TTS returns MP3,
// which the audio package converts to telephony mulaw before playback.
package tts

import (
	"context"
	"io"

	openai "github.com/sashabaranov/go-openai"
)

type Synthesizer struct {
	client *openai.Client
	voice  openai.SpeechVoice
}

func NewSynthesizer(client *openai.Client) *Synthesizer {
	return &Synthesizer{client: client, voice: openai.VoiceAlloy}
}

// Synthesize returns raw MP3 bytes for the given text.
func (s *Synthesizer) Synthesize(ctx context.Context, text string) ([]byte, error) {
	resp, err := s.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          openai.TTSModel1,
		Input:          text,
		Voice:          s.voice,
		ResponseFormat: openai.SpeechResponseFormatMp3,
	})
	if err != nil {
		return nil, err
	}
	defer resp.Close()
	return io.ReadAll(resp)
}
