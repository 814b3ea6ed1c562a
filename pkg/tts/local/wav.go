package local

import (
	"bytes"
	"encoding/binary"
	"hash/fnv"
	"math"
	"unicode/utf8"
)

const (
	msPerRune   = 40
	maxDuration = 10000 // ms
	baseFreq    = 220.0
)

// synthesizeTone renders the text as 16-bit mono PCM. The pitch is
// derived from a hash of the text and the duration from its rune
// count, so identical text always yields identical samples.
func synthesizeTone(text string, sampleRate int) []int16 {
	durationMS := utf8.RuneCountInString(text) * msPerRune
	if durationMS > maxDuration {
		durationMS = maxDuration
	}

	h := fnv.New32a()
	h.Write([]byte(text))
	freq := baseFreq + float64(h.Sum32()%440)

	n := sampleRate * durationMS / 1000
	samples := make([]int16, n)
	for i := range samples {
		t := float64(i) / float64(sampleRate)
		// fade in/out to avoid clicks at chunk joins
		envelope := 1.0
		fade := sampleRate / 50
		if i < fade {
			envelope = float64(i) / float64(fade)
		} else if n-i < fade {
			envelope = float64(n-i) / float64(fade)
		}
		samples[i] = int16(0.3 * envelope * math.MaxInt16 * math.Sin(2*math.Pi*freq*t))
	}
	return samples
}

// encodeWAV wraps PCM samples in a minimal RIFF/WAVE container.
func encodeWAV(samples []int16, sampleRate int) []byte {
	dataSize := len(samples) * 2
	var buf bytes.Buffer

	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36+dataSize))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // mono
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate*2))
	binary.Write(&buf, binary.LittleEndian, uint16(2))
	binary.Write(&buf, binary.LittleEndian, uint16(16))

	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, uint32(dataSize))
	binary.Write(&buf, binary.LittleEndian, samples)

	return buf.Bytes()
}
