// Package audio assembles narration segments into a playable WAV stream.
package audio

import "encoding/binary"

// Narration audio format: single-channel 16-bit linear PCM at 24 kHz,
// matching what the speech synthesis port returns.
const (
	SampleRate    = 24000
	NumChannels   = 1
	BitsPerSample = 16
)

// Concat joins raw PCM segments in their original order.
func Concat(segments [][]byte) []byte {
	total := 0
	for _, seg := range segments {
		total += len(seg)
	}
	out := make([]byte, 0, total)
	for _, seg := range segments {
		out = append(out, seg...)
	}
	return out
}

// EncodeWAV wraps raw PCM samples into a standard RIFF/WAVE container.
func EncodeWAV(pcm []byte, sampleRate, numChannels, bitsPerSample int) []byte {
	blockAlign := numChannels * bitsPerSample / 8
	byteRate := sampleRate * blockAlign
	dataSize := len(pcm)

	buf := make([]byte, 44+dataSize)
	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+dataSize))
	copy(buf[8:12], "WAVE")
	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)
	binary.LittleEndian.PutUint16(buf[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(buf[22:24], uint16(numChannels))
	binary.LittleEndian.PutUint32(buf[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(buf[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(buf[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(buf[34:36], uint16(bitsPerSample))
	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataSize))
	copy(buf[44:], pcm)
	return buf
}

// Duration returns the playable length in seconds of raw PCM samples.
// Returns 0 for empty input or a nonsensical format.
func Duration(pcm []byte, sampleRate, numChannels, bitsPerSample int) float64 {
	blockAlign := numChannels * bitsPerSample / 8
	if blockAlign <= 0 || sampleRate <= 0 || len(pcm) == 0 {
		return 0
	}
	return float64(len(pcm)) / float64(sampleRate*blockAlign)
}
