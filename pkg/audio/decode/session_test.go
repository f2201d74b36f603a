// ABOUTME: Tests for the decoder session contract
// ABOUTME: Uses a scripted engine to check both modes, failures, aliasing and lifecycle
package decode

import (
	"errors"
	"strings"
	"testing"
)

// fakeEngine decodes packets of the form [frames, value]. A first byte of
// 0xFF is treated as corrupt.
type fakeEngine struct {
	channels int
	planes   [][]float32
	queue    [][]byte
	seen     [][]byte
	closed   int
}

var errFakeCorrupt = errors.New("libfake: corrupted stream (-4)")

func (f *fakeEngine) Decode(packet []byte) (int, error) {
	f.seen = append(f.seen, packet)
	if len(packet) < 2 || packet[0] == 0xFF {
		return 0, errFakeCorrupt
	}

	frames := int(packet[0])
	for ch := range f.planes {
		if cap(f.planes[ch]) < frames {
			f.planes[ch] = make([]float32, frames)
		}
		f.planes[ch] = f.planes[ch][:frames]
		for i := range f.planes[ch] {
			f.planes[ch][i] = float32(packet[1]) + float32(ch)
		}
	}
	return frames, nil
}

func (f *fakeEngine) Enqueue(packet []byte) error {
	f.seen = append(f.seen, packet)
	f.queue = append(f.queue, append([]byte(nil), packet...))
	return nil
}

func (f *fakeEngine) Dequeue() (int, bool, error) {
	if len(f.queue) == 0 {
		return 0, false, nil
	}
	p := f.queue[0]
	f.queue = f.queue[1:]
	n, err := f.Decode(p)
	if err != nil {
		return 0, false, err
	}
	return n, true, nil
}

func (f *fakeEngine) Plane(ch int) []float32 {
	return f.planes[ch]
}

func (f *fakeEngine) Close() error {
	f.closed++
	return nil
}

// fakeFactory records the engine it creates in *out
func fakeFactory(out **fakeEngine) Factory {
	return func(channels, sampleRate int) (Engine, error) {
		if channels > 8 {
			return nil, errors.New("libfake: bad argument (-1)")
		}
		f := &fakeEngine{channels: channels, planes: make([][]float32, channels)}
		if out != nil {
			*out = f
		}
		return f, nil
	}
}

func TestCreateDestroy(t *testing.T) {
	var eng *fakeEngine
	s, err := NewSession(fakeFactory(&eng), 2, 48000)
	if err != nil {
		t.Fatalf("failed to create session: %v", err)
	}

	if s.Channels() != 2 || s.SampleRate() != 48000 {
		t.Errorf("unexpected parameters %d/%d", s.Channels(), s.SampleRate())
	}

	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if eng.closed != 1 {
		t.Errorf("expected engine closed once, got %d", eng.closed)
	}
	if st := s.Stats(); st.Submitted != 0 || st.Decoded != 0 {
		t.Errorf("expected no activity, got %+v", st)
	}
}

func TestNewSession_InitializationErrors(t *testing.T) {
	tests := []struct {
		name       string
		factory    Factory
		channels   int
		sampleRate int
	}{
		{"zero channels", fakeFactory(nil), 0, 48000},
		{"negative sample rate", fakeFactory(nil), 2, -1},
		{"engine rejects", fakeFactory(nil), 9, 48000},
		{"nil factory", nil, 2, 48000},
		{"nil engine", func(int, int) (Engine, error) { return nil, nil }, 2, 48000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := NewSession(tt.factory, tt.channels, tt.sampleRate)
			if !errors.Is(err, ErrInitialization) {
				t.Errorf("expected ErrInitialization, got %v", err)
			}
			if s != nil {
				t.Error("expected no session on failure")
			}
		})
	}
}

func TestDecodeReturnsEqualLengthChannels(t *testing.T) {
	s, err := NewSession(fakeFactory(nil), 2, 48000)
	if err != nil {
		t.Fatalf("failed to create session: %v", err)
	}
	defer s.Close()

	for _, frames := range []byte{4, 9, 0, 4} {
		buf, err := s.Decode([]byte{frames, 1})
		if err != nil {
			t.Fatalf("Decode(%d frames) failed: %v", frames, err)
		}
		if buf.Size() != 2 {
			t.Fatalf("expected 2 channels, got %d", buf.Size())
		}
		for ch := 0; ch < buf.Size(); ch++ {
			v, _ := buf.Get(ch)
			if v.Len() != int(frames) {
				t.Errorf("channel %d: expected %d samples, got %d", ch, frames, v.Len())
			}
		}
	}
}

func TestDecodeFailureLeavesSessionUsable(t *testing.T) {
	s, err := NewSession(fakeFactory(nil), 1, 16000)
	if err != nil {
		t.Fatalf("failed to create session: %v", err)
	}
	defer s.Close()

	buf, err := s.Decode([]byte{0xFF, 0x00, 0x13})
	if !errors.Is(err, ErrDecodeFailure) {
		t.Fatalf("expected ErrDecodeFailure, got %v", err)
	}
	if buf != nil {
		t.Error("expected no buffer on failure")
	}
	if errors.Is(err, errFakeCorrupt) {
		t.Error("raw engine error must not be exposed through the error chain")
	}

	buf, err = s.Decode([]byte{8, 3})
	if err != nil {
		t.Fatalf("valid packet after failure should decode: %v", err)
	}
	if buf.Size() != 1 || buf.FrameSize() != 8 {
		t.Errorf("unexpected frame %dx%d", buf.Size(), buf.FrameSize())
	}

	st := s.Stats()
	if st.Submitted != 2 || st.Decoded != 1 || st.Failed != 1 {
		t.Errorf("unexpected stats %+v", st)
	}
}

func TestEmptyPacketFails(t *testing.T) {
	s, err := NewSession(NewPCM16, 1, 8000)
	if err != nil {
		t.Fatalf("failed to create session: %v", err)
	}
	defer s.Close()

	if _, err := s.Decode(nil); !errors.Is(err, ErrDecodeFailure) {
		t.Errorf("expected ErrDecodeFailure for empty packet, got %v", err)
	}
}

func TestBufferedOutputWithoutInput(t *testing.T) {
	s, err := NewSession(fakeFactory(nil), 2, 48000)
	if err != nil {
		t.Fatalf("failed to create session: %v", err)
	}
	defer s.Close()

	buf, ok, err := s.Output()
	if err != nil || ok || buf != nil {
		t.Errorf("expected empty output, got buf=%v ok=%v err=%v", buf, ok, err)
	}
}

func TestBufferedOneInputOneOutput(t *testing.T) {
	s, err := NewSession(fakeFactory(nil), 2, 48000)
	if err != nil {
		t.Fatalf("failed to create session: %v", err)
	}
	defer s.Close()

	if err := s.Input([]byte{6, 2}); err != nil {
		t.Fatalf("Input failed: %v", err)
	}
	if s.Pending() != 1 {
		t.Errorf("expected 1 pending packet, got %d", s.Pending())
	}

	buf, ok, err := s.Output()
	if err != nil || !ok {
		t.Fatalf("expected a frame, got ok=%v err=%v", ok, err)
	}
	if buf.Size() != 2 || buf.FrameSize() != 6 {
		t.Errorf("unexpected frame %dx%d", buf.Size(), buf.FrameSize())
	}

	buf, ok, err = s.Output()
	if err != nil || ok || buf != nil {
		t.Errorf("expected empty output after draining, got ok=%v err=%v", ok, err)
	}
	if s.Pending() != 0 {
		t.Errorf("expected no pending packets, got %d", s.Pending())
	}
}

func TestBufferedPreservesOrder(t *testing.T) {
	s, err := NewSession(fakeFactory(nil), 1, 48000)
	if err != nil {
		t.Fatalf("failed to create session: %v", err)
	}
	defer s.Close()

	for _, v := range []byte{10, 20, 30} {
		if err := s.Input([]byte{2, v}); err != nil {
			t.Fatalf("Input failed: %v", err)
		}
	}

	for _, want := range []float32{10, 20, 30} {
		buf, ok, err := s.Output()
		if err != nil || !ok {
			t.Fatalf("expected frame, got ok=%v err=%v", ok, err)
		}
		v, _ := buf.Get(0)
		if v.At(0) != want {
			t.Errorf("expected %v, got %v", want, v.At(0))
		}
	}
}

func TestBufferedCorruptPacket(t *testing.T) {
	s, err := NewSession(fakeFactory(nil), 2, 48000)
	if err != nil {
		t.Fatalf("failed to create session: %v", err)
	}
	defer s.Close()

	_ = s.Input([]byte{0xFF})
	_ = s.Input([]byte{3, 7})

	buf, ok, err := s.Output()
	if !errors.Is(err, ErrDecodeFailure) || ok || buf != nil {
		t.Fatalf("expected decode failure, got ok=%v err=%v", ok, err)
	}

	buf, ok, err = s.Output()
	if err != nil || !ok {
		t.Fatalf("valid packet after corrupt one should decode: ok=%v err=%v", ok, err)
	}
	if buf.FrameSize() != 3 {
		t.Errorf("expected 3 samples, got %d", buf.FrameSize())
	}
}

func TestViewValidUntilNextCall(t *testing.T) {
	s, err := NewSession(fakeFactory(nil), 2, 48000)
	if err != nil {
		t.Fatalf("failed to create session: %v", err)
	}
	defer s.Close()

	first, err := s.Decode([]byte{4, 1})
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	// Read before the next call: must be the decoded values
	left, _ := first.Get(0)
	right, _ := first.Get(1)
	for i := 0; i < left.Len(); i++ {
		if left.At(i) != 1 || right.At(i) != 2 {
			t.Fatalf("sample %d: got %v/%v", i, left.At(i), right.At(i))
		}
	}
	kept := left.Copy()

	second, err := s.Decode([]byte{4, 5})
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if first != second {
		t.Error("session should hand out its single owned buffer")
	}
	if kept[0] != 1 {
		t.Error("copied samples must survive later calls")
	}

	v, _ := second.Get(0)
	if v.At(0) != 5 {
		t.Errorf("expected second frame value 5, got %v", v.At(0))
	}
}

func TestBufferClearedOnEveryCall(t *testing.T) {
	s, err := NewSession(fakeFactory(nil), 2, 48000)
	if err != nil {
		t.Fatalf("failed to create session: %v", err)
	}
	defer s.Close()

	buf, err := s.Decode([]byte{4, 1})
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	if _, err := s.Decode([]byte{0xFF, 0}); err == nil {
		t.Fatal("expected failure")
	}
	if buf.Size() != 0 {
		t.Errorf("failed call must not leave stale channels, got %d", buf.Size())
	}

	_, _ = s.Decode([]byte{4, 1})
	_ = s.Input([]byte{4, 1})
	if buf.Size() != 0 {
		t.Errorf("Input must clear the buffer, got %d channels", buf.Size())
	}
}

func TestPacketsAreCopiedAcrossBoundary(t *testing.T) {
	var eng *fakeEngine
	s, err := NewSession(fakeFactory(&eng), 1, 48000)
	if err != nil {
		t.Fatalf("failed to create session: %v", err)
	}
	defer s.Close()

	host := []byte{2, 9}
	if _, err := s.Decode(host); err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if err := s.Input(host); err != nil {
		t.Fatalf("Input failed: %v", err)
	}
	_, _ = s.Decode([]byte{0xFF, 0xFF})

	for i, region := range eng.seen {
		if len(region) > 0 && &region[0] == &host[0] {
			t.Errorf("call %d: engine saw the host's memory", i)
		}
	}
	if s.heap.Live() != 0 {
		t.Errorf("transient regions leaked: %d live", s.heap.Live())
	}
	if s.heap.Acquired() != 3 {
		t.Errorf("expected one region per submission, got %d", s.heap.Acquired())
	}
}

func TestClosedSession(t *testing.T) {
	s, err := NewSession(fakeFactory(nil), 2, 48000)
	if err != nil {
		t.Fatalf("failed to create session: %v", err)
	}

	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if err := s.Close(); !errors.Is(err, ErrClosed) {
		t.Errorf("second Close: expected ErrClosed, got %v", err)
	}
	if _, err := s.Decode([]byte{1, 1}); !errors.Is(err, ErrClosed) {
		t.Errorf("Decode: expected ErrClosed, got %v", err)
	}
	if err := s.Input([]byte{1, 1}); !errors.Is(err, ErrClosed) {
		t.Errorf("Input: expected ErrClosed, got %v", err)
	}
	if _, _, err := s.Output(); !errors.Is(err, ErrClosed) {
		t.Errorf("Output: expected ErrClosed, got %v", err)
	}
}

// shortPlaneEngine reports more samples than its planes hold
type shortPlaneEngine struct{ fakeEngine }

func (e *shortPlaneEngine) Decode(packet []byte) (int, error) {
	n, err := e.fakeEngine.Decode(packet)
	return n + 1, err
}

func TestEnginePlaneMismatchIsDecodeFailure(t *testing.T) {
	factory := func(channels, sampleRate int) (Engine, error) {
		return &shortPlaneEngine{fakeEngine{channels: channels, planes: make([][]float32, channels)}}, nil
	}

	s, err := NewSession(factory, 2, 48000)
	if err != nil {
		t.Fatalf("failed to create session: %v", err)
	}
	defer s.Close()

	_, err = s.Decode([]byte{4, 1})
	if !errors.Is(err, ErrDecodeFailure) {
		t.Fatalf("expected ErrDecodeFailure, got %v", err)
	}
	if !strings.Contains(err.Error(), "channel 0") {
		t.Errorf("error should name the channel, got %q", err.Error())
	}
}
