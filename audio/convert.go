package audio

import (
	"bytes"
	"encoding/binary"
	"io"
	"math"

	mp3 "github.com/hajimehoshi/go-mp3"
	"github.com/pkg/errors"
)

// MP3ToMulaw decodes an MP3 buffer (TTS output), downmixes to mono,
// resamples to 8kHz and encodes to mulaw. An error means the utterance
// can't be played; the caller logs it and the call continues.
func MP3ToMulaw(mp3Bytes []byte) ([]byte, error) {
	dec, err := mp3.NewDecoder(bytes.NewReader(mp3Bytes))
	if err != nil {
		return nil, errors.Wrap(err, "decode mp3")
	}
	raw, err := io.ReadAll(dec)
	if err != nil {
		return nil, errors.Wrap(err, "read mp3 frames")
	}
	// go-mp3 always emits 16-bit little-endian stereo.
	if len(raw)%4 != 0 {
		return nil, errors.Errorf("unexpected decoded length %d", len(raw))
	}

	samples := make([]int16, len(raw)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(raw[i*2:]))
	}
	mono := downmixStereo(samples)
	mono = resampleLinear(mono, dec.SampleRate(), SampleRate)

	pcm := make([]byte, len(mono)*2)
	for i, s := range mono {
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(s))
	}
	return Encode(pcm)
}

func downmixStereo(samples []int16) []int16 {
	mono := make([]int16, len(samples)/2)
	for i := range mono {
		l := int(samples[2*i])
		r := int(samples[2*i+1])
		mono[i] = int16((l + r) / 2)
	}
	return mono
}

func resampleLinear(in []int16, inRate, outRate int) []int16 {
	if inRate == outRate || len(in) == 0 {
		return in
	}
	ratio := float64(outRate) / float64(inRate)
	outLen := int(math.Round(float64(len(in)) * ratio))
	if outLen <= 1 {
		return []int16{}
	}
	out := make([]int16, outLen)
	for i := range out {
		srcPos := float64(i) / ratio
		i0 := int(math.Floor(srcPos))
		i1 := i0 + 1
		if i1 >= len(in) {
			i1 = len(in) - 1
		}
		f := srcPos - float64(i0)
		v := float64(in[i0])*(1-f) + float64(in[i1])*f
		if v > math.MaxInt16 {
			v = math.MaxInt16
		}
		if v < math.MinInt16 {
			v = math.MinInt16
		}
		out[i] = int16(v)
	}
	return out
}
