// ABOUTME: Entry point for the packetdec command line decoder
// ABOUTME: Decodes a packet file locally or on a remote server and writes WAV or plays it
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/Sendspin/packetdec/internal/discovery"
	"github.com/Sendspin/packetdec/internal/version"
	"github.com/Sendspin/packetdec/pkg/audio"
	"github.com/Sendspin/packetdec/pkg/audio/decode"
	"github.com/Sendspin/packetdec/pkg/audio/output"
	"github.com/Sendspin/packetdec/pkg/packetfile"
	"github.com/Sendspin/packetdec/pkg/protocol"
)

var (
	inFile     = flag.String("in", "", "Packet file to decode (4-byte length, 4-byte final range, payload)")
	codec      = flag.String("codec", "opus", "Codec of the packets")
	channels   = flag.Int("channels", 2, "Channel count")
	sampleRate = flag.Int("rate", 48000, "Sample rate in Hz")
	mode       = flag.String("mode", "sync", "Decode mode: sync or buffered")
	queueDepth = flag.Int("queue", 4, "Packets queued before draining in buffered mode")
	outFile    = flag.String("out", "", "Write decoded audio to this WAV file")
	play       = flag.Bool("play", false, "Play decoded audio")
	volume     = flag.Int("volume", 100, "Playback volume (0-100)")
	mute       = flag.Bool("mute", false, "Start playback muted")
	remote     = flag.String("remote", "", "Decode on a server at host:port instead of locally")
	discover   = flag.Bool("discover", false, "Find a decode server via mDNS")
	logFile    = flag.String("log-file", "", "Also log to this file")
	listCodecs = flag.Bool("codecs", false, "List built-in codecs and exit")
)

// decoder is satisfied by a local session and by the remote adapter
type decoder interface {
	Decode(packet []byte) (*audio.ChannelBuffer, error)
	Input(packet []byte) error
	Output() (*audio.ChannelBuffer, bool, error)
	Close() error
}

func main() {
	flag.Parse()

	if *logFile != "" {
		f, err := os.OpenFile(*logFile, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
		if err != nil {
			log.Fatalf("error opening log file: %v", err)
		}
		defer func() { _ = f.Close() }()
		log.SetOutput(io.MultiWriter(os.Stderr, f))
	}

	registry := decode.NewRegistry()

	if *listCodecs {
		for _, name := range registry.Codecs() {
			fmt.Println(name)
		}
		return
	}

	if *inFile == "" {
		log.Fatalf("-in is required")
	}
	if *mode != "sync" && *mode != "buffered" {
		log.Fatalf("unknown mode %q (want sync or buffered)", *mode)
	}

	log.Printf("%s %s", version.Product, version.Version)

	dec, err := openDecoder(registry)
	if err != nil {
		log.Fatalf("Failed to open decoder: %v", err)
	}
	defer func() {
		if err := dec.Close(); err != nil {
			log.Printf("Error closing decoder: %v", err)
		}
	}()

	outputs, err := openOutputs()
	if err != nil {
		log.Fatalf("Failed to open output: %v", err)
	}
	defer func() {
		for _, out := range outputs {
			if err := out.Close(); err != nil {
				log.Printf("Error closing output: %v", err)
			}
		}
	}()

	f, err := os.Open(*inFile)
	if err != nil {
		log.Fatalf("Failed to open %s: %v", *inFile, err)
	}
	defer f.Close()

	start := time.Now()
	stats, err := run(dec, packetfile.NewReader(f), outputs)
	if err != nil {
		log.Printf("Stopped after %d packets: %v", stats.packets, err)
	}

	log.Printf("Decoded %d frames (%d samples/channel) from %d packets, %d failed, in %v",
		stats.frames, stats.samples, stats.packets, stats.failed, time.Since(start).Round(time.Millisecond))
}

// openDecoder opens a local session or a remote one
func openDecoder(registry *decode.Registry) (decoder, error) {
	addr := *remote
	if addr == "" && *discover {
		found, err := discoverServer(*codec, 10*time.Second)
		if err != nil {
			return nil, err
		}
		addr = found
	}

	if addr == "" {
		session, err := registry.Open(*codec, *channels, *sampleRate)
		if err != nil {
			return nil, err
		}
		return session, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := protocol.Dial(ctx, addr, protocol.SessionOpen{
		Codec:      *codec,
		Channels:   *channels,
		SampleRate: *sampleRate,
		ClientName: clientName(),
	})
	if err != nil {
		return nil, err
	}
	return &remoteDecoder{client: client}, nil
}

// discoverServer waits for a server advertising codec
func discoverServer(codec string, timeout time.Duration) (string, error) {
	log.Printf("Starting server discovery...")

	disc := discovery.NewManager(discovery.Config{})
	defer disc.Stop()
	disc.Browse()

	deadline := time.After(timeout)
	for {
		select {
		case server := <-disc.Servers():
			if len(server.Codecs) > 0 && !server.Supports(codec) {
				log.Printf("Skipping %s: no %s support", server.Name, codec)
				continue
			}
			log.Printf("Discovered server at %s", server.Addr())
			return server.Addr(), nil
		case <-deadline:
			return "", fmt.Errorf("no server with %s found after %v", codec, timeout)
		}
	}
}

func clientName() string {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	return fmt.Sprintf("%s-%s", hostname, version.Product)
}

// openOutputs opens the requested sinks with the session format
func openOutputs() ([]output.Output, error) {
	var outputs []output.Output
	if *outFile != "" {
		outputs = append(outputs, output.NewWAV(*outFile))
	}
	if *play {
		outputs = append(outputs, newPlayer(*volume, *mute))
	}

	for i, out := range outputs {
		if err := out.Open(*sampleRate, *channels); err != nil {
			for _, opened := range outputs[:i] {
				opened.Close()
			}
			return nil, err
		}
	}
	return outputs, nil
}

// newPlayer creates the audio device output with the requested level
func newPlayer(volume int, muted bool) *output.Oto {
	p := output.NewOto()
	p.SetVolume(volume)
	p.SetMuted(muted)
	return p
}

type runStats struct {
	packets int
	frames  int
	samples int
	failed  int
}

// run feeds every packet through dec and writes the frames to outputs
func run(dec decoder, r *packetfile.Reader, outputs []output.Output) (runStats, error) {
	var stats runStats

	write := func(buf *audio.ChannelBuffer) error {
		stats.frames++
		stats.samples += buf.FrameSize()
		for _, out := range outputs {
			if err := out.Write(buf); err != nil {
				return err
			}
		}
		return nil
	}

	drain := func() error {
		for {
			buf, ok, err := dec.Output()
			if err != nil {
				if !errors.Is(err, decode.ErrDecodeFailure) && !errors.Is(err, protocol.ErrRemoteDecode) {
					return err
				}
				log.Printf("Packet failed: %v", err)
				stats.failed++
				continue
			}
			if !ok {
				return nil
			}
			if err := write(buf); err != nil {
				return err
			}
		}
	}

	queued := 0
	for {
		p, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return stats, err
		}
		stats.packets++

		if *mode == "buffered" {
			if err := dec.Input(p.Data); err != nil {
				log.Printf("Packet %d rejected: %v", stats.packets, err)
				stats.failed++
				continue
			}
			queued++
			if queued >= *queueDepth {
				if err := drain(); err != nil {
					return stats, err
				}
				queued = 0
			}
			continue
		}

		buf, err := dec.Decode(p.Data)
		if err != nil {
			if !errors.Is(err, decode.ErrDecodeFailure) && !errors.Is(err, protocol.ErrRemoteDecode) {
				return stats, err
			}
			log.Printf("Packet %d failed: %v", stats.packets, err)
			stats.failed++
			continue
		}
		if err := write(buf); err != nil {
			return stats, err
		}
	}

	if *mode == "buffered" {
		return stats, drain()
	}
	return stats, nil
}

// remoteDecoder exposes a protocol client through the session's method set
type remoteDecoder struct {
	client *protocol.Client
	buf    audio.ChannelBuffer
}

func (d *remoteDecoder) Decode(packet []byte) (*audio.ChannelBuffer, error) {
	d.buf.Clear()
	frame, err := d.client.Decode(packet)
	if err != nil {
		return nil, err
	}
	d.buf.Bind(frame.Channels)
	return &d.buf, nil
}

func (d *remoteDecoder) Input(packet []byte) error {
	d.buf.Clear()
	return d.client.Input(packet)
}

func (d *remoteDecoder) Output() (*audio.ChannelBuffer, bool, error) {
	d.buf.Clear()
	frame, ok, err := d.client.Output()
	if err != nil || !ok {
		return nil, false, err
	}
	d.buf.Bind(frame.Channels)
	return &d.buf, true, nil
}

func (d *remoteDecoder) Close() error {
	d.buf.Clear()
	return d.client.Close()
}
