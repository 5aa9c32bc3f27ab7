package audio

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pcmBytes(samples ...int16) []byte {
	b := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(b[i*2:], uint16(s))
	}
	return b
}

func pcmSamples(t *testing.T, b []byte) []int16 {
	t.Helper()
	require.Zero(t, len(b)%2)
	out := make([]int16, len(b)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(b[i*2:]))
	}
	return out
}

// G.711 reference pairs: linear sample -> mulaw byte.
func TestEncodeReferenceVectors(t *testing.T) {
	vectors := []struct {
		pcm   int16
		mulaw byte
	}{
		{0, 0xFF},
		{-1, 0x7F},
		{8, 0xFE},
		{100, 0xF2},
		{-100, 0x72},
		{1000, 0xCE},
		{-1000, 0x4E},
		{32124, 0x80},
		{32767, 0x80},
		{-32768, 0x00},
	}
	for _, v := range vectors {
		got, err := Encode(pcmBytes(v.pcm))
		require.NoError(t, err)
		assert.Equal(t, []byte{v.mulaw}, got, "pcm %d", v.pcm)
	}
}

func TestDecodeReferenceVectors(t *testing.T) {
	vectors := []struct {
		mulaw byte
		pcm   int16
	}{
		{0xFF, 0},
		{0x7F, 0},
		{0xFE, 8},
		{0xCE, 988},
		{0x4E, -988},
		{0x80, 32124},
		{0x00, -32124},
	}
	for _, v := range vectors {
		got, err := Decode([]byte{v.mulaw})
		require.NoError(t, err)
		assert.Equal(t, []int16{v.pcm}, pcmSamples(t, got), "mulaw %#x", v.mulaw)
	}
}

// Every companded level must survive an encode/decode round trip bit-exact.
func TestRoundTripCompandedLevels(t *testing.T) {
	all := make([]byte, 256)
	for i := range all {
		all[i] = byte(i)
	}
	pcm, err := Decode(all)
	require.NoError(t, err)

	mulaw, err := Encode(pcm)
	require.NoError(t, err)
	back, err := Decode(mulaw)
	require.NoError(t, err)
	assert.Equal(t, pcmSamples(t, pcm), pcmSamples(t, back))
}

func TestEncodeRejectsMalformedInput(t *testing.T) {
	_, err := Encode(nil)
	assert.Error(t, err)
	_, err = Encode([]byte{0x01})
	assert.Error(t, err)
	_, err = Encode([]byte{0x01, 0x02, 0x03})
	assert.Error(t, err)
}

func TestDecodeRejectsEmptyInput(t *testing.T) {
	_, err := Decode(nil)
	assert.Error(t, err)
}
