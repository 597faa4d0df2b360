// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Ryan Johnson

package vnc

import (
	"io"
)

// frameReader reads the big-endian primitives the RFB wire format is built
// from. It never surfaces a partial read: a read either returns exactly the
// requested number of bytes or an error.
type frameReader struct {
	r io.Reader
}

// newFrameReader wraps r for big-endian reads.
func newFrameReader(r io.Reader) *frameReader {
	return &frameReader{r: r}
}

// readBytes reads exactly n bytes, looping until satisfied or the stream
// fails. A short read that never completes is reported as an I/O error.
func (f *frameReader) readBytes(n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(f.r, buf); err != nil {
		return nil, networkError("frameReader.readBytes", "short read", err)
	}
	return buf, nil
}

// readPadding discards n bytes of wire padding.
func (f *frameReader) readPadding(n int) error {
	_, err := f.readBytes(n)
	return err
}

// readU8 reads a single unsigned byte.
func (f *frameReader) readU8() (uint8, error) {
	b, err := f.readBytes(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// readU16 reads a big-endian 16-bit unsigned integer.
func (f *frameReader) readU16() (uint16, error) {
	b, err := f.readBytes(2)
	if err != nil {
		return 0, err
	}
	return uint16(b[0])<<8 | uint16(b[1]), nil
}

// readU32 reads a big-endian 32-bit unsigned integer.
func (f *frameReader) readU32() (uint32, error) {
	b, err := f.readBytes(4)
	if err != nil {
		return 0, err
	}
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3]), nil
}

// readI32 reads a big-endian 32-bit signed integer, used for RFB encoding
// type identifiers which may be negative (pseudo-encodings).
func (f *frameReader) readI32() (int32, error) {
	v, err := f.readU32()
	return int32(v), err
}

// readString reads a length-prefixed-elsewhere ASCII/UTF-8 blob of exactly n
// bytes, returned verbatim as a string.
func (f *frameReader) readString(n int) (string, error) {
	b, err := f.readBytes(n)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// frameWriter writes the big-endian primitives the RFB wire format is built
// from. Each write is flushed to the underlying stream immediately; callers
// requiring atomic multi-field messages hold the session's write mutex.
type frameWriter struct {
	w io.Writer
}

// newFrameWriter wraps w for big-endian writes.
func newFrameWriter(w io.Writer) *frameWriter {
	return &frameWriter{w: w}
}

// writeBytes writes b verbatim.
func (f *frameWriter) writeBytes(b []byte) error {
	if _, err := f.w.Write(b); err != nil {
		return networkError("frameWriter.writeBytes", "short write", err)
	}
	return nil
}

// writePadding writes n zero bytes of wire padding.
func (f *frameWriter) writePadding(n int) error {
	return f.writeBytes(make([]byte, n))
}

// writeU8 writes a single unsigned byte.
func (f *frameWriter) writeU8(v uint8) error {
	return f.writeBytes([]byte{v})
}

// writeU16 writes a big-endian 16-bit unsigned integer.
func (f *frameWriter) writeU16(v uint16) error {
	return f.writeBytes([]byte{byte(v >> 8), byte(v)})
}

// writeU32 writes a big-endian 32-bit unsigned integer.
func (f *frameWriter) writeU32(v uint32) error {
	return f.writeBytes([]byte{byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v)})
}

// writeI32 writes a big-endian 32-bit signed integer.
func (f *frameWriter) writeI32(v int32) error {
	return f.writeU32(uint32(v))
}
