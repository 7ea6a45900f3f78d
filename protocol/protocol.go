// Package protocol implements the binary framing for the bundled TCP
// transport binding.
//
// A fixed 13-byte header is followed by a variable-length body. The
// receiver reads the header first to learn the body length, then reads
// exactly that many bytes, so frame boundaries survive TCP's stream
// semantics.
//
// Frame format:
//
//	0      3  4  5         9         13
//	┌──────┬──┬──┬─────────┬─────────┬───────────────┐
//	│magic │v │mt│   seq   │ bodyLen │    body ...    │
//	│ wcp  │01│  │ uint32  │ uint32  │ bodyLen bytes  │
//	└──────┴──┴──┴─────────┴─────────┴───────────────┘
package protocol

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Magic number bytes: "wcp" (wirecall protocol). Rejects non-protocol
// connections before any body bytes are trusted.
const (
	MagicByte1 byte = 0x77 // 'w'
	MagicByte2 byte = 0x63 // 'c'
	MagicByte3 byte = 0x70 // 'p'
	Version    byte = 0x01
	HeaderSize int  = 13 // 3 (magic) + 1 (version) + 1 (msgType) + 4 (seq) + 4 (bodyLen)
)

// MsgType classifies a frame. Reply and Error are distinct types so the
// dispatcher can route a failed call without peeking at the body.
type MsgType byte

const (
	MsgTypeCall      MsgType = 0 // method invocation, body is a call message
	MsgTypeReply     MsgType = 1 // successful completion, body is the return-value stream
	MsgTypeError     MsgType = 2 // failed completion, body is a single error string
	MsgTypeHeartbeat MsgType = 3 // keepalive probe, no body
)

// Header is the fixed 13-byte frame header.
type Header struct {
	MsgType MsgType // Call, Reply, Error, or Heartbeat
	Seq     uint32  // matches a reply or error frame to its call
	BodyLen uint32  // exact body length in bytes
}

// Frame renders a complete frame (header + body) into one buffer. Callers
// that must guarantee no partial send write the returned slice with a
// single Write call.
func Frame(h *Header, body []byte) []byte {
	buf := make([]byte, HeaderSize, HeaderSize+len(body))
	buf[0], buf[1], buf[2] = MagicByte1, MagicByte2, MagicByte3
	buf[3] = Version
	buf[4] = byte(h.MsgType)
	binary.BigEndian.PutUint32(buf[5:9], h.Seq)
	binary.BigEndian.PutUint32(buf[9:13], uint32(len(body)))
	return append(buf, body...)
}

// Encode writes a complete frame to w. The caller must hold a write lock
// if multiple goroutines share the same writer, otherwise frames from
// different calls interleave and corrupt the stream.
func Encode(w io.Writer, h *Header, body []byte) error {
	_, err := w.Write(Frame(h, body))
	return err
}

// Decode reads one complete frame from r. It validates the magic number,
// version, and message type, and uses io.ReadFull so a short read can
// never yield a truncated body.
func Decode(r io.Reader) (*Header, []byte, error) {
	headerBuf := make([]byte, HeaderSize)
	if _, err := io.ReadFull(r, headerBuf); err != nil {
		return nil, nil, err
	}

	if headerBuf[0] != MagicByte1 || headerBuf[1] != MagicByte2 || headerBuf[2] != MagicByte3 {
		return nil, nil, fmt.Errorf("protocol: invalid magic number: %x", headerBuf[0:3])
	}
	if headerBuf[3] != Version {
		return nil, nil, fmt.Errorf("protocol: unsupported version: %d", headerBuf[3])
	}

	msgType := headerBuf[4]
	if msgType > byte(MsgTypeHeartbeat) {
		return nil, nil, fmt.Errorf("protocol: unsupported message type: %d", msgType)
	}

	seq := binary.BigEndian.Uint32(headerBuf[5:9])
	bodyLen := binary.BigEndian.Uint32(headerBuf[9:13])

	body := make([]byte, bodyLen)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, nil, err
	}

	return &Header{
		MsgType: MsgType(msgType),
		Seq:     seq,
		BodyLen: bodyLen,
	}, body, nil
}
