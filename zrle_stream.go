// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Ryan Johnson

package vnc

import (
	"bytes"
	"compress/zlib"
	"io"
)

// maxZRLECompressedLength caps the compressed-block length prefix ZRLE reads
// ahead of each rectangle. A hostile or corrupt server advertising a block
// larger than this is rejected before any bytes are read.
const maxZRLECompressedLength = 64 * 1024 * 1024

// compressedStream is the zlib-inflate adapter ZRLE rectangles read from.
// The inflate state is created once per session and reused across every
// ZRLE rectangle for the life of the connection; per the RFB specification
// the server's zlib stream is one continuous stream, not one per rectangle.
// Only the read cursor over the current rectangle's inflated bytes is reset
// between rectangles.
type compressedStream struct {
	src   io.Reader
	zr    io.ReadCloser
	inBuf *bytes.Buffer // raw compressed bytes fed to the inflater for the current rectangle
	out   bytes.Buffer  // inflated bytes for the current rectangle, read cursor tracked separately
	pos   int
	validator *InputValidator
}

// newCompressedStream constructs a ZRLE substream reading compressed blocks
// from src. The inflater is lazily created on the first rectangle because
// zlib.NewReader needs to read the 2-byte zlib header from the first block.
func newCompressedStream(src io.Reader) *compressedStream {
	return &compressedStream{src: src, validator: newInputValidator()}
}

// beginRectangle reads the u32 compressed-length prefix for a new ZRLE
// rectangle, reads exactly that many compressed bytes from the outer stream,
// and inflates them into the internal buffer, resetting the read cursor.
// The zlib decompressor itself is never reset: bytes fed to it continue the
// single session-long inflate stream.
func (c *compressedStream) beginRectangle(fr *frameReader) error {
	length, err := fr.readU32()
	if err != nil {
		return err
	}
	if err := c.validator.ValidateCompressedLength(length, maxZRLECompressedLength); err != nil {
		return err
	}

	compressed, err := fr.readBytes(int(length))
	if err != nil {
		return err
	}

	if c.zr == nil {
		c.inBuf = bytes.NewBuffer(compressed)
		zr, err := zlib.NewReader(c.inBuf)
		if err != nil {
			return encodingError("compressedStream.beginRectangle", "failed to initialize zlib stream", err)
		}
		c.zr = zr
	} else {
		c.inBuf.Reset()
		c.inBuf.Write(compressed)
	}

	c.out.Reset()
	c.pos = 0
	// A sync-flushed block boundary (every rectangle but the last one a
	// server sends before closing the stream) surfaces as ErrUnexpectedEOF,
	// not EOF: flate.Reader has consumed a complete block but the
	// underlying inBuf is now empty, so the next read can't tell whether
	// the stream ended or just ran out of buffered input for this block.
	if _, err := io.Copy(&c.out, c.zr); err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return encodingError("compressedStream.beginRectangle", "zlib inflate failed", err)
	}

	return nil
}

// readU8 reads one byte from the current rectangle's inflated output.
func (c *compressedStream) readU8() (uint8, error) {
	b, err := c.readBytes(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// readBytes reads exactly n bytes from the current rectangle's inflated
// output. Reading past what was inflated for this rectangle is an error:
// ZRLE tiles never span a rectangle boundary.
func (c *compressedStream) readBytes(n int) ([]byte, error) {
	avail := c.out.Bytes()
	if c.pos+n > len(avail) {
		return nil, encodingError("compressedStream.readBytes",
			"read past end of inflated ZRLE rectangle", nil)
	}
	b := avail[c.pos : c.pos+n]
	c.pos += n
	return b, nil
}
