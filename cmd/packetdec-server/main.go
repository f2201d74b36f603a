// ABOUTME: Entry point for the packetdec decode server
// ABOUTME: Parses CLI flags, starts the server and optionally the dashboard
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Sendspin/packetdec/internal/ui"
	"github.com/Sendspin/packetdec/internal/version"
	"github.com/Sendspin/packetdec/pkg/audio/decode"
	"github.com/Sendspin/packetdec/pkg/packetfile"
	"github.com/Sendspin/packetdec/pkg/server"
)

var (
	port      = flag.Int("port", server.DefaultPort, "WebSocket server port")
	name      = flag.String("name", "", "Server friendly name (default: hostname-packetdec-server)")
	logFile   = flag.String("log-file", "packetdec-server.log", "Log file path")
	debug     = flag.Bool("debug", false, "Enable debug logging")
	noMDNS    = flag.Bool("no-mdns", false, "Disable mDNS advertisement")
	noTUI     = flag.Bool("no-tui", false, "Disable TUI, use streaming logs instead")
	maxPacket = flag.Int("max-packet", packetfile.MaxPacketSize, "Largest accepted packet in bytes")
)

func main() {
	flag.Parse()

	useTUI := !*noTUI

	f, err := os.OpenFile(*logFile, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		log.Fatalf("error opening log file: %v", err)
	}
	defer f.Close()

	if useTUI {
		// TUI mode: log only to file
		log.SetOutput(f)
	} else {
		log.SetOutput(io.MultiWriter(os.Stdout, f))
	}

	serverName := *name
	if serverName == "" {
		hostname, err := os.Hostname()
		if err != nil {
			hostname = "unknown"
		}
		serverName = fmt.Sprintf("%s-packetdec-server", hostname)
	}

	log.Printf("Starting %s %s: %s on port %d", version.Product, version.Version, serverName, *port)
	if *debug {
		log.Printf("Debug logging enabled")
	}
	log.Printf("Logging to: %s", *logFile)

	registry := decode.NewRegistry()

	srv, err := server.NewServer(server.ServerConfig{
		Port:          *port,
		Name:          serverName,
		Registry:      registry,
		EnableMDNS:    !*noMDNS,
		MaxPacketSize: *maxPacket,
		Debug:         *debug,
	})
	if err != nil {
		log.Fatalf("Failed to create server: %v", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	quit := make(chan struct{}, 1)

	if useTUI {
		prog, err := ui.Run(serverName, *port, quit)
		if err != nil {
			log.Fatalf("Failed to start TUI: %v", err)
		}

		go func() {
			if _, err := prog.Run(); err != nil {
				log.Printf("TUI error: %v", err)
			}
			select {
			case quit <- struct{}{}:
			default:
			}
		}()
		defer prog.Quit()

		go func() {
			ticker := time.NewTicker(500 * time.Millisecond)
			defer ticker.Stop()
			for range ticker.C {
				prog.Send(ui.StatusMsg{
					Codecs:   registry.Codecs(),
					Sessions: srv.Sessions(),
				})
			}
		}()
	} else {
		log.Printf("Press Ctrl-C to stop")
	}

	go func() {
		select {
		case sig := <-sigChan:
			log.Printf("Received %v signal, shutting down gracefully...", sig)
		case <-quit:
			log.Printf("Received quit signal from TUI")
		}
		srv.Stop()
	}()

	if err := srv.Start(); err != nil {
		log.Fatalf("Server error: %v", err)
	}

	log.Printf("Server stopped")
}
