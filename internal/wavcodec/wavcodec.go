// Package wavcodec decodes and encodes mono 16-bit PCM WAV audio, shared by
// the operators and engines that manipulate raw samples directly (bgmmixer,
// prosody) rather than treating audio as an opaque byte blob.
package wavcodec

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/cwbudde/wav"
	goaudio "github.com/go-audio/audio"
)

// DecodeMono decodes data as a mono WAV file, returning its PCM samples as
// float32 in [-1, 1] and its sample rate.
func DecodeMono(data []byte) (samples []float32, sampleRate int, err error) {
	dec := wav.NewDecoder(bytes.NewReader(data))
	if !dec.IsValidFile() {
		return nil, 0, errors.New("wavcodec: invalid WAV file")
	}
	if dec.NumChans != 1 {
		return nil, 0, fmt.Errorf("wavcodec: expected mono audio, got %d channels", dec.NumChans)
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, 0, fmt.Errorf("wavcodec: reading PCM data: %w", err)
	}
	return buf.Data, int(dec.SampleRate), nil
}

// EncodeMono encodes samples as a 16-bit PCM mono WAV file at sampleRate.
func EncodeMono(samples []float32, sampleRate int) ([]byte, error) {
	var buf bytes.Buffer
	sw := &seekBuffer{buf: &buf}
	enc := wav.NewEncoder(sw, sampleRate, 16, 1, 1)

	pcmBuf := &goaudio.Float32Buffer{
		Data:           samples,
		Format:         &goaudio.Format{SampleRate: sampleRate, NumChannels: 1},
		SourceBitDepth: 16,
	}
	if err := enc.Write(pcmBuf); err != nil {
		return nil, fmt.Errorf("wavcodec: writing PCM: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("wavcodec: closing encoder: %w", err)
	}
	return buf.Bytes(), nil
}

// seekBuffer adapts a bytes.Buffer to io.WriteSeeker for wav.NewEncoder,
// which seeks back to patch RIFF/data chunk sizes on Close.
type seekBuffer struct {
	buf *bytes.Buffer
	pos int
}

func (s *seekBuffer) Write(p []byte) (int, error) {
	if s.pos == s.buf.Len() {
		n, err := s.buf.Write(p)
		s.pos += n
		return n, err
	}
	data := s.buf.Bytes()
	n := copy(data[s.pos:], p)
	if n < len(p) {
		data = append(data, p[n:]...)
		s.buf.Reset()
		s.buf.Write(data)
		n = len(p)
	}
	s.pos += n
	return n, nil
}

func (s *seekBuffer) Seek(offset int64, whence int) (int64, error) {
	var newPos int
	switch whence {
	case 0:
		newPos = int(offset)
	case 1:
		newPos = s.pos + int(offset)
	case 2:
		newPos = s.buf.Len() + int(offset)
	}
	if newPos < 0 {
		return 0, errors.New("wavcodec: seek before start")
	}
	s.pos = newPos
	return int64(newPos), nil
}
