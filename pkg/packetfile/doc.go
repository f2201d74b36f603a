// ABOUTME: Packet stream file package
// ABOUTME: Reads and writes length-prefixed encoded packets
// Package packetfile reads and writes streams of encoded packets.
//
// Each record is a 4-byte big-endian payload length, a 4-byte big-endian
// encoder final range (0 when unknown), then the payload. This matches the
// bitstream files written by opus_demo.
//
// Example:
//
//	r := packetfile.NewReader(f)
//	for {
//	    p, err := r.Next()
//	    if err == io.EOF {
//	        break
//	    }
//	    buf, err := session.Decode(p.Data)
//	}
package packetfile
