// ABOUTME: Tests for the packetdec command's decode loop
// ABOUTME: Runs packet files through local sessions in both modes
package main

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/Sendspin/packetdec/pkg/audio"
	"github.com/Sendspin/packetdec/pkg/audio/decode"
	"github.com/Sendspin/packetdec/pkg/audio/output"
	"github.com/Sendspin/packetdec/pkg/packetfile"
)

// captureOutput records frame sizes written to it
type captureOutput struct {
	sizes []int
}

func (c *captureOutput) Open(sampleRate, channels int) error { return nil }
func (c *captureOutput) Close() error                        { return nil }

func (c *captureOutput) Write(buf *audio.ChannelBuffer) error {
	c.sizes = append(c.sizes, buf.FrameSize())
	return nil
}

// pcmFile builds a packet file of mono 16-bit packets; a 0 entry is corrupt
func pcmFile(t *testing.T, frames ...int) *packetfile.Reader {
	t.Helper()

	var b bytes.Buffer
	w := packetfile.NewWriter(&b)
	for _, n := range frames {
		data := make([]byte, 2*n)
		for i := 0; i < n; i++ {
			binary.LittleEndian.PutUint16(data[2*i:], uint16(i))
		}
		if n == 0 {
			data = []byte{1, 2, 3}
		}
		if err := w.Write(packetfile.Packet{Data: data}); err != nil {
			t.Fatalf("write failed: %v", err)
		}
	}
	return packetfile.NewReader(&b)
}

func TestRun(t *testing.T) {
	tests := []struct {
		name  string
		mode  string
		queue int
	}{
		{"sync", "sync", 4},
		{"buffered", "buffered", 2},
		{"buffered single drain", "buffered", 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			*mode = tt.mode
			*queueDepth = tt.queue

			session, err := decode.NewRegistry().Open("pcm", 1, 48000)
			if err != nil {
				t.Fatalf("Open failed: %v", err)
			}
			defer session.Close()

			out := &captureOutput{}
			// The 0 entry is a 3-byte packet, which is not whole 16-bit samples
			stats, err := run(session, pcmFile(t, 4, 0, 8, 2), []output.Output{out})
			if err != nil {
				t.Fatalf("run failed: %v", err)
			}

			if stats.packets != 4 || stats.frames != 3 || stats.failed != 1 {
				t.Errorf("unexpected stats %+v", stats)
			}
			if stats.samples != 14 {
				t.Errorf("expected 14 samples, got %d", stats.samples)
			}
			if len(out.sizes) != 3 || out.sizes[0] != 4 || out.sizes[1] != 8 || out.sizes[2] != 2 {
				t.Errorf("unexpected frame sizes %v", out.sizes)
			}
		})
	}
}

func TestNewPlayer(t *testing.T) {
	tests := []struct {
		volume     int
		muted      bool
		wantVolume int
	}{
		{100, false, 100},
		{40, true, 40},
		{150, false, 100},
		{-5, false, 0},
	}

	for _, tt := range tests {
		p := newPlayer(tt.volume, tt.muted)
		if got := p.GetVolume(); got != tt.wantVolume {
			t.Errorf("volume %d: expected %d, got %d", tt.volume, tt.wantVolume, got)
		}
		if p.IsMuted() != tt.muted {
			t.Errorf("volume %d: expected muted=%v", tt.volume, tt.muted)
		}
	}
}
