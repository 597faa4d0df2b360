// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Ryan Johnson

package vnc

import "fmt"

// Client and server message type identifiers, per §4.5 and §6.
const (
	msgSetPixelFormat          uint8 = 0
	msgSetEncodings            uint8 = 2
	msgFramebufferUpdateReq    uint8 = 3
	msgKeyEvent                uint8 = 4
	msgPointerEvent            uint8 = 5
	msgClientCutText           uint8 = 6
	msgFramebufferUpdate       uint8 = 0
	msgSetColourMapEntries     uint8 = 1
	msgBell                    uint8 = 2
	msgServerCutText           uint8 = 3
)

// Protocol-wide size limits, per §7's rejection policy for oversize fields.
const (
	MaxRectanglesPerUpdate   = 10000
	MaxClientClipboardLength = 1024 * 1024
	MaxServerClipboardLength = 10 * 1024 * 1024
	latin1MaxCodePoint       = 255
)

// ButtonMask represents the state of pointer buttons in a PointerEvent.
type ButtonMask uint8

// Button mask constants, per §6 item 11.
const (
	ButtonLeft    ButtonMask = 1 << 0
	ButtonMiddle  ButtonMask = 1 << 1
	ButtonRight   ButtonMask = 1 << 2
	ButtonWheelUp ButtonMask = 1 << 3
	ButtonWheelDn ButtonMask = 1 << 4
)

// writeSetPixelFormat sends SetPixelFormat (client→server, type 0).
func writeSetPixelFormat(fw *frameWriter, format *PixelFormat) error {
	if err := fw.writeU8(msgSetPixelFormat); err != nil {
		return networkError("writeSetPixelFormat", "failed to write message type", err)
	}
	if err := fw.writePadding(3); err != nil {
		return networkError("writeSetPixelFormat", "failed to write padding", err)
	}
	raw, err := writePixelFormat(format)
	if err != nil {
		return networkError("writeSetPixelFormat", "failed to build pixel format", err)
	}
	if err := fw.writeBytes(raw); err != nil {
		return networkError("writeSetPixelFormat", "failed to write pixel format", err)
	}
	return nil
}

// writeSetEncodings sends SetEncodings (client→server, type 2), advertising
// encodings in the fixed preference order required by §4.6.
func writeSetEncodings(fw *frameWriter, encodings []int32) error {
	if err := fw.writeU8(msgSetEncodings); err != nil {
		return networkError("writeSetEncodings", "failed to write message type", err)
	}
	if err := fw.writePadding(1); err != nil {
		return networkError("writeSetEncodings", "failed to write padding", err)
	}
	if err := fw.writeU16(uint16(len(encodings))); err != nil { // #nosec G115 - encoding list length is always small
		return networkError("writeSetEncodings", "failed to write encoding count", err)
	}
	for _, enc := range encodings {
		if err := fw.writeI32(enc); err != nil {
			return networkError("writeSetEncodings", "failed to write encoding type", err)
		}
	}
	return nil
}

// writeFramebufferUpdateRequest sends FramebufferUpdateRequest (type 3).
func writeFramebufferUpdateRequest(fw *frameWriter, incremental bool, x, y, w, h uint16) error {
	if err := fw.writeU8(msgFramebufferUpdateReq); err != nil {
		return networkError("writeFramebufferUpdateRequest", "failed to write message type", err)
	}
	var incByte uint8
	if incremental {
		incByte = 1
	}
	if err := fw.writeU8(incByte); err != nil {
		return networkError("writeFramebufferUpdateRequest", "failed to write incremental flag", err)
	}
	for _, v := range []uint16{x, y, w, h} {
		if err := fw.writeU16(v); err != nil {
			return networkError("writeFramebufferUpdateRequest", "failed to write rectangle field", err)
		}
	}
	return nil
}

// writeKeyEvent sends KeyEvent (type 4).
func writeKeyEvent(fw *frameWriter, keysym uint32, down bool) error {
	if err := fw.writeU8(msgKeyEvent); err != nil {
		return networkError("writeKeyEvent", "failed to write message type", err)
	}
	var downByte uint8
	if down {
		downByte = 1
	}
	if err := fw.writeU8(downByte); err != nil {
		return networkError("writeKeyEvent", "failed to write down flag", err)
	}
	if err := fw.writePadding(2); err != nil {
		return networkError("writeKeyEvent", "failed to write padding", err)
	}
	if err := fw.writeU32(keysym); err != nil {
		return networkError("writeKeyEvent", "failed to write keysym", err)
	}
	return nil
}

// writePointerEvent sends PointerEvent (type 5).
func writePointerEvent(fw *frameWriter, mask ButtonMask, x, y uint16) error {
	if err := fw.writeU8(msgPointerEvent); err != nil {
		return networkError("writePointerEvent", "failed to write message type", err)
	}
	if err := fw.writeU8(uint8(mask)); err != nil {
		return networkError("writePointerEvent", "failed to write button mask", err)
	}
	for _, v := range []uint16{x, y} {
		if err := fw.writeU16(v); err != nil {
			return networkError("writePointerEvent", "failed to write coordinate", err)
		}
	}
	return nil
}

// writeClientCutText sends ClientCutText (type 6). text must be Latin-1
// representable; callers should validate/sanitize before calling.
func writeClientCutText(fw *frameWriter, text string) error {
	for _, r := range text {
		if r > latin1MaxCodePoint {
			return validationError("writeClientCutText", fmt.Sprintf("character %q is not valid Latin-1", r), nil)
		}
	}

	if err := fw.writeU8(msgClientCutText); err != nil {
		return networkError("writeClientCutText", "failed to write message type", err)
	}
	if err := fw.writePadding(3); err != nil {
		return networkError("writeClientCutText", "failed to write padding", err)
	}
	if err := fw.writeU32(uint32(len(text))); err != nil { // #nosec G115 - text length validated by caller
		return networkError("writeClientCutText", "failed to write text length", err)
	}
	if err := fw.writeBytes([]byte(text)); err != nil {
		return networkError("writeClientCutText", "failed to write text", err)
	}
	return nil
}

// framebufferUpdateResult is the decoded content of one FramebufferUpdate
// message: the rectangles in server order, ready for the on_update hooks.
type framebufferUpdateResult struct {
	rectangles []Rectangle
}

// readFramebufferUpdate reads and decodes a FramebufferUpdate message
// (type 0 body, the leading type byte already consumed), dispatching each
// rectangle to its registered decoder and writing pixels into fb.
func readFramebufferUpdate(ctx *decodeContext, validator *InputValidator) (framebufferUpdateResult, error) {
	if err := ctx.fr.readPadding(1); err != nil {
		return framebufferUpdateResult{}, networkError("readFramebufferUpdate", "failed to read padding", err)
	}

	numRects, err := ctx.fr.readU16()
	if err != nil {
		return framebufferUpdateResult{}, networkError("readFramebufferUpdate", "failed to read rectangle count", err)
	}
	if numRects > MaxRectanglesPerUpdate {
		return framebufferUpdateResult{}, protocolError("readFramebufferUpdate",
			fmt.Sprintf("too many rectangles in update: %d", numRects), nil)
	}

	rects := make([]Rectangle, numRects)
	for i := range rects {
		rect, err := readRectangleHeader(ctx.fr)
		if err != nil {
			return framebufferUpdateResult{}, err
		}

		if err := validateRectangleBounds(rect, ctx.fb); err != nil {
			return framebufferUpdateResult{}, protocolError("readFramebufferUpdate",
				fmt.Sprintf("invalid rectangle %d", i), err)
		}

		decoder, err := decoderForEncoding(rect.Encoding)
		if err != nil {
			return framebufferUpdateResult{}, err
		}

		if err := decoder.Decode(ctx, rect); err != nil {
			return framebufferUpdateResult{}, encodingError("readFramebufferUpdate",
				fmt.Sprintf("failed to decode rectangle %d", i), err)
		}

		rects[i] = rect
	}

	return framebufferUpdateResult{rectangles: rects}, nil
}

// readRectangleHeader reads one rectangle's fixed-size header fields.
func readRectangleHeader(fr *frameReader) (Rectangle, error) {
	x, err := fr.readU16()
	if err != nil {
		return Rectangle{}, networkError("readRectangleHeader", "failed to read X", err)
	}
	y, err := fr.readU16()
	if err != nil {
		return Rectangle{}, networkError("readRectangleHeader", "failed to read Y", err)
	}
	w, err := fr.readU16()
	if err != nil {
		return Rectangle{}, networkError("readRectangleHeader", "failed to read width", err)
	}
	h, err := fr.readU16()
	if err != nil {
		return Rectangle{}, networkError("readRectangleHeader", "failed to read height", err)
	}
	encoding, err := fr.readI32()
	if err != nil {
		return Rectangle{}, networkError("readRectangleHeader", "failed to read encoding type", err)
	}
	return Rectangle{X: x, Y: y, Width: w, Height: h, Encoding: encoding}, nil
}

// readSetColourMapEntries reads SetColourMapEntries (type 1 body) and
// installs the new entries into cm.
func readSetColourMapEntries(fr *frameReader, cm *ColorMap, validator *InputValidator) error {
	if err := fr.readPadding(1); err != nil {
		return networkError("readSetColourMapEntries", "failed to read padding", err)
	}

	firstColor, err := fr.readU16()
	if err != nil {
		return networkError("readSetColourMapEntries", "failed to read first color index", err)
	}
	numColors, err := fr.readU16()
	if err != nil {
		return networkError("readSetColourMapEntries", "failed to read color count", err)
	}
	if err := validator.ValidateColorMapEntries(firstColor, numColors, ColorMapSize); err != nil {
		return protocolError("readSetColourMapEntries", "invalid color map entries", err)
	}

	r := make([]uint16, numColors)
	g := make([]uint16, numColors)
	b := make([]uint16, numColors)
	for i := range r {
		if r[i], err = fr.readU16(); err != nil {
			return networkError("readSetColourMapEntries", "failed to read red component", err)
		}
		if g[i], err = fr.readU16(); err != nil {
			return networkError("readSetColourMapEntries", "failed to read green component", err)
		}
		if b[i], err = fr.readU16(); err != nil {
			return networkError("readSetColourMapEntries", "failed to read blue component", err)
		}
	}

	return cm.SetRange(firstColor, r, g, b)
}

// readServerCutText reads ServerCutText (type 3 body). The wire format
// carries 3 padding bytes before the length field, not 1 — a detail easy
// to get wrong by analogy with the other server messages' single pad byte.
func readServerCutText(fr *frameReader, validator *InputValidator) (string, error) {
	if err := fr.readPadding(3); err != nil {
		return "", networkError("readServerCutText", "failed to read padding", err)
	}

	length, err := fr.readU32()
	if err != nil {
		return "", networkError("readServerCutText", "failed to read text length", err)
	}
	if err := validator.ValidateMessageLength(length, MaxServerClipboardLength); err != nil {
		return "", protocolError("readServerCutText", "invalid clipboard text length", err)
	}

	text, err := fr.readString(int(length))
	if err != nil {
		return "", networkError("readServerCutText", "failed to read text data", err)
	}

	if err := validator.ValidateTextData(text, int(MaxServerClipboardLength)); err != nil {
		text = validator.SanitizeText(text)
	}
	return text, nil
}
