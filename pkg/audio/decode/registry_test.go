// ABOUTME: Tests for the codec registry
// ABOUTME: Tests built-in codecs, custom registration and unknown codecs
package decode

import (
	"errors"
	"testing"
)

func TestRegistryCodecs(t *testing.T) {
	r := NewRegistry()

	want := []string{"flac", "mp3", "opus", "pcm", "pcm24", "vorbis"}
	got := r.Codecs()
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("codec %d: expected %s, got %s", i, want[i], got[i])
		}
	}
}

func TestRegistryOpenUnknown(t *testing.T) {
	s, err := NewRegistry().Open("aac", 2, 48000)
	if !errors.Is(err, ErrInitialization) || !errors.Is(err, ErrUnknownCodec) {
		t.Errorf("expected ErrInitialization and ErrUnknownCodec, got %v", err)
	}
	if s != nil {
		t.Error("expected no session")
	}
}

func TestRegistryRegisterCustom(t *testing.T) {
	r := NewRegistry()
	r.Register("fake", fakeFactory(nil))

	if _, ok := r.Lookup("fake"); !ok {
		t.Fatal("registered codec not found")
	}

	s, err := r.Open("fake", 1, 8000)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer s.Close()

	f := s.Format()
	if f.Codec != "fake" || f.Channels != 1 || f.SampleRate != 8000 {
		t.Errorf("unexpected format %+v", f)
	}
}

func TestRegistriesAreIndependent(t *testing.T) {
	a := NewRegistry()
	b := NewRegistry()
	a.Register("fake", fakeFactory(nil))

	if _, ok := b.Lookup("fake"); ok {
		t.Error("registration leaked between registries")
	}
}

func TestRegistryOpenChannelBounds(t *testing.T) {
	tests := []struct {
		codec    string
		channels int
		wantErr  bool
	}{
		{"pcm", 255, false},
		{"pcm", 256, true},
		{"pcm", 1 << 20, true},
		{"pcm24", 1 << 17, true},
		{"vorbis", 1 << 20, true},
		{"opus", 256, true},
	}

	for _, tt := range tests {
		s, err := NewRegistry().Open(tt.codec, tt.channels, 48000)
		if tt.wantErr {
			if !errors.Is(err, ErrInitialization) {
				t.Errorf("%s with %d channels: expected ErrInitialization, got %v", tt.codec, tt.channels, err)
			}
			if s != nil {
				t.Errorf("%s with %d channels: expected no session", tt.codec, tt.channels)
			}
			continue
		}
		if err != nil {
			t.Errorf("%s with %d channels: %v", tt.codec, tt.channels, err)
			continue
		}
		s.Close()
	}
}

func TestRegistryFormatBitDepth(t *testing.T) {
	tests := []struct {
		codec string
		want  int
	}{
		{"pcm", 16},
		{"pcm24", 24},
		{"mp3", 16},
		{"vorbis", 0},
	}

	for _, tt := range tests {
		s, err := NewRegistry().Open(tt.codec, 2, 48000)
		if err != nil {
			t.Fatalf("Open %s failed: %v", tt.codec, err)
		}
		if got := s.Format().BitDepth; got != tt.want {
			t.Errorf("%s: expected bit depth %d, got %d", tt.codec, tt.want, got)
		}
		s.Close()
	}
}
