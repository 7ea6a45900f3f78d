package wire

import "encoding/binary"

// Cursor is the in-memory buffer every codec reads from and writes to.
// Writes append to the end; reads consume from the front. One cursor is
// used per message body, so a failed decode only needs to rewind the
// read position to un-consume the failed value.
type Cursor struct {
	buf []byte
	pos int
}

// NewCursor returns a cursor positioned at the start of buf.
// Pass nil to get an empty cursor for encoding.
func NewCursor(buf []byte) *Cursor {
	return &Cursor{buf: buf}
}

// Bytes returns the full underlying buffer, including already-read bytes.
func (c *Cursor) Bytes() []byte {
	return c.buf
}

// Remaining reports how many unread bytes are left.
func (c *Cursor) Remaining() int {
	return len(c.buf) - c.pos
}

// Rest returns the unread tail of the buffer without consuming it.
func (c *Cursor) Rest() []byte {
	return c.buf[c.pos:]
}

// Append appends raw, already-encoded bytes. Callers use it to splice a
// pre-encoded value stream into a message body.
func (c *Cursor) Append(p []byte) {
	c.buf = append(c.buf, p...)
}

func (c *Cursor) writeBytes(p []byte) {
	c.buf = append(c.buf, p...)
}

func (c *Cursor) writeUint8(v uint8) {
	c.buf = append(c.buf, v)
}

func (c *Cursor) writeUint16(v uint16) {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	c.buf = append(c.buf, b[:]...)
}

func (c *Cursor) writeUint32(v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	c.buf = append(c.buf, b[:]...)
}

func (c *Cursor) writeUint64(v uint64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	c.buf = append(c.buf, b[:]...)
}

// reserveUint32 appends a 4-byte placeholder and returns its offset so a
// container codec can backpatch the byte length once the contents are known.
func (c *Cursor) reserveUint32() int {
	off := len(c.buf)
	c.buf = append(c.buf, 0, 0, 0, 0)
	return off
}

func (c *Cursor) patchUint32(off int, v uint32) {
	binary.BigEndian.PutUint32(c.buf[off:off+4], v)
}

func (c *Cursor) readBytes(n int) ([]byte, error) {
	if n < 0 || c.Remaining() < n {
		return nil, ErrCorruptContainer
	}
	p := c.buf[c.pos : c.pos+n]
	c.pos += n
	return p, nil
}

func (c *Cursor) readUint8() (uint8, error) {
	p, err := c.readBytes(1)
	if err != nil {
		return 0, err
	}
	return p[0], nil
}

func (c *Cursor) readUint16() (uint16, error) {
	p, err := c.readBytes(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(p), nil
}

func (c *Cursor) readUint32() (uint32, error) {
	p, err := c.readBytes(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(p), nil
}

func (c *Cursor) readUint64() (uint64, error) {
	p, err := c.readBytes(8)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(p), nil
}
