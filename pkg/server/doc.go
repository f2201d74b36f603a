// ABOUTME: Decode server package
// ABOUTME: Hosts one decoder session per WebSocket connection
// Package server exposes decoder sessions over the decode wire protocol.
//
// Each WebSocket connection to /decode opens exactly one session from the
// server's Registry. Requests on a connection are handled in order and
// every decoded frame is copied into its reply before the next request
// touches the session.
//
// Example:
//
//	srv, err := server.NewServer(server.ServerConfig{
//	    Port:       8937,
//	    Name:       "Living Room Decoder",
//	    EnableMDNS: true,
//	})
//	go srv.Start()
//	defer srv.Stop()
package server
