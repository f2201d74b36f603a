// ABOUTME: Registry mapping codec names to engine factories
// ABOUTME: Created explicitly by the host in place of any global decoder state
package decode

import (
	"fmt"
	"log"
	"sort"
	"sync"
)

// Registry opens sessions by codec name. It is safe for concurrent use;
// the sessions it opens are not.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates a registry with the built-in codecs
func NewRegistry() *Registry {
	r := &Registry{
		factories: make(map[string]Factory),
	}

	r.Register("opus", NewOpus)
	r.Register("pcm", NewPCM16)
	r.Register("pcm24", NewPCM24)
	r.Register("flac", NewFLAC)
	r.Register("mp3", NewMP3)
	r.Register("vorbis", NewVorbis)

	return r
}

// Register adds or replaces the factory for codec
func (r *Registry) Register(codec string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[codec] = factory
}

// Lookup returns the factory registered for codec
func (r *Registry) Lookup(codec string) (Factory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.factories[codec]
	return f, ok
}

// Codecs returns the registered codec names, sorted
func (r *Registry) Codecs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Open creates a session for codec with the given parameters
func (r *Registry) Open(codec string, channels, sampleRate int) (*Session, error) {
	factory, ok := r.Lookup(codec)
	if !ok {
		return nil, fmt.Errorf("%w: %w: %s", ErrInitialization, ErrUnknownCodec, codec)
	}

	s, err := NewSession(factory, channels, sampleRate)
	if err != nil {
		return nil, err
	}
	s.codec = codec

	log.Printf("Decoder session opened: %s", s.Format())
	return s, nil
}
