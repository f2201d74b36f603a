// ABOUTME: WAV file output implementation
// ABOUTME: Writes decoded frames as 16-bit PCM using go-audio/wav
package output

import (
	"fmt"
	"log"
	"os"

	"github.com/Sendspin/packetdec/pkg/audio"
	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const wavBitDepth = 16

// WAV writes frames to a 16-bit PCM WAV file
type WAV struct {
	path     string
	file     *os.File
	encoder  *wav.Encoder
	format   *goaudio.Format
	scratch  []float32
	frames   int
	channels int
}

// NewWAV creates a WAV output that writes to path on Open
func NewWAV(path string) *WAV {
	return &WAV{path: path}
}

// Open creates the file and writes the header
func (w *WAV) Open(sampleRate, channels int) error {
	if w.file != nil {
		return fmt.Errorf("wav output already open: %s", w.path)
	}

	f, err := os.Create(w.path)
	if err != nil {
		return fmt.Errorf("failed to create wav file: %w", err)
	}

	w.file = f
	w.channels = channels
	w.format = &goaudio.Format{NumChannels: channels, SampleRate: sampleRate}
	// 1 is the WAVE_FORMAT_PCM audio format tag
	w.encoder = wav.NewEncoder(f, sampleRate, wavBitDepth, channels, 1)

	log.Printf("WAV output opened: %s (%dHz, %d channels)", w.path, sampleRate, channels)
	return nil
}

// Write appends one frame
func (w *WAV) Write(buf *audio.ChannelBuffer) error {
	if w.encoder == nil {
		return fmt.Errorf("output not initialized")
	}
	if buf.Size() != w.channels {
		return fmt.Errorf("frame has %d channels, output has %d", buf.Size(), w.channels)
	}

	w.scratch = buf.Interleave(w.scratch[:0])
	data := make([]int, len(w.scratch))
	for i, s := range w.scratch {
		data[i] = int(audio.FloatToInt16(s))
	}

	intBuf := &goaudio.IntBuffer{
		Format:         w.format,
		Data:           data,
		SourceBitDepth: wavBitDepth,
	}
	if err := w.encoder.Write(intBuf); err != nil {
		return fmt.Errorf("wav write failed: %w", err)
	}

	w.frames += buf.FrameSize()
	return nil
}

// Frames returns the number of samples per channel written so far
func (w *WAV) Frames() int {
	return w.frames
}

// Close finalizes the header and closes the file
func (w *WAV) Close() error {
	if w.file == nil {
		return nil
	}

	var firstErr error
	if err := w.encoder.Close(); err != nil {
		firstErr = fmt.Errorf("failed to finalize wav: %w", err)
	}
	if err := w.file.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("failed to close wav file: %w", err)
	}

	w.file = nil
	w.encoder = nil
	return firstErr
}
