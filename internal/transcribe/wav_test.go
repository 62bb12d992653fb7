package transcribe

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildWAV(t *testing.T, numChannels, sampleRate int, samples16 []int16) []byte {
	t.Helper()
	data := make([]byte, len(samples16)*2)
	for i, s := range samples16 {
		binary.LittleEndian.PutUint16(data[i*2:], uint16(s))
	}

	var buf bytes.Buffer
	header := wavHeader{
		ChunkID:       [4]byte{'R', 'I', 'F', 'F'},
		ChunkSize:     uint32(36 + len(data)),
		Format:        [4]byte{'W', 'A', 'V', 'E'},
		Subchunk1ID:   [4]byte{'f', 'm', 't', ' '},
		Subchunk1Size: 16,
		AudioFormat:   1,
		NumChannels:   uint16(numChannels),
		SampleRate:    uint32(sampleRate),
		ByteRate:      uint32(sampleRate * numChannels * 2),
		BlockAlign:    uint16(numChannels * 2),
		BitsPerSample: 16,
		Subchunk2ID:   [4]byte{'d', 'a', 't', 'a'},
		Subchunk2Size: uint32(len(data)),
	}
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, &header))
	buf.Write(data)
	return buf.Bytes()
}

func TestDecodeWAV_MonoSamplesRoundTrip(t *testing.T) {
	raw := buildWAV(t, 1, 16000, []int16{0, 16384, -16384, 32767})

	samples, err := decodeWAV(bytes.NewReader(raw))
	require.NoError(t, err)
	require.Len(t, samples, 4)
	assert.InDelta(t, 0.0, samples[0], 1e-6)
	assert.InDelta(t, 0.5, samples[1], 1e-3)
	assert.InDelta(t, -0.5, samples[2], 1e-3)
}

func TestDecodeWAV_StereoDownmixesToMono(t *testing.T) {
	raw := buildWAV(t, 2, 16000, []int16{0, 32767, 32767, 0})

	samples, err := decodeWAV(bytes.NewReader(raw))
	require.NoError(t, err)
	require.Len(t, samples, 2)
	assert.InDelta(t, 0.5, samples[0], 1e-3)
	assert.InDelta(t, 0.5, samples[1], 1e-3)
}

func TestDecodeWAV_RejectsNonRIFF(t *testing.T) {
	_, err := decodeWAV(bytes.NewReader([]byte("not a wav file at all, too short")))
	assert.Error(t, err)
}
