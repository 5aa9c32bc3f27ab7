// Package audio converts between Twilio's 8kHz mulaw telephony format and
// 16-bit linear PCM, and turns synthesized MP3 speech into mulaw suitable
// for streaming back over a media stream.
package audio

import (
	"encoding/binary"
	"fmt"
)

// SampleRate is the telephony sample rate Twilio media streams use.
const SampleRate = 8000

const (
	ulawBias = 0x84
	ulawClip = 32635
)

// Decode converts 8-bit mulaw bytes to 16-bit little-endian PCM.
func Decode(mulaw []byte) ([]byte, error) {
	if len(mulaw) == 0 {
		return nil, fmt.Errorf("audio: empty mulaw buffer")
	}
	pcm := make([]byte, len(mulaw)*2)
	for i, b := range mulaw {
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(ulawToLinear(b)))
	}
	return pcm, nil
}

// Encode converts 16-bit little-endian PCM to 8-bit mulaw bytes.
func Encode(pcm []byte) ([]byte, error) {
	if len(pcm) == 0 {
		return nil, fmt.Errorf("audio: empty pcm buffer")
	}
	if len(pcm)%2 != 0 {
		return nil, fmt.Errorf("audio: odd pcm buffer length %d", len(pcm))
	}
	mulaw := make([]byte, len(pcm)/2)
	for i := range mulaw {
		s := int16(binary.LittleEndian.Uint16(pcm[i*2:]))
		mulaw[i] = linearToUlaw(s)
	}
	return mulaw, nil
}

func ulawToLinear(u byte) int16 {
	u = ^u
	sign := u & 0x80
	exp := (u >> 4) & 0x07
	mant := u & 0x0F
	value := (int(mant) << 3) + ulawBias
	value <<= uint(exp)
	value -= ulawBias
	if sign != 0 {
		return int16(-value)
	}
	return int16(value)
}

func linearToUlaw(sample int16) byte {
	sign := byte(0)
	s := int(sample)
	if s < 0 {
		s = -s
		sign = 0x80
	}
	if s > ulawClip {
		s = ulawClip
	}
	s += ulawBias
	exp := 7
	for mask := 0x4000; s&mask == 0 && exp > 0; mask >>= 1 {
		exp--
	}
	mant := (s >> (uint(exp) + 3)) & 0x0F
	return ^(sign | byte(exp<<4) | byte(mant))
}
