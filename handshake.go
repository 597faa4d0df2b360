// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Ryan Johnson

package vnc

import (
	"context"
	"fmt"
	"net"
)

// pvLen is the fixed length of a ProtocolVersion banner: "RFB 003.008\n".
const pvLen = 12

// repeaterProxyFrameSize is the size of the proxy-address frame a client
// writes in response to a repeater's "RFB 000.000\n" banner.
const repeaterProxyFrameSize = 250

// Security type identifiers, per §6 item 2.
const (
	SecurityTypeNone    uint8 = 1
	SecurityTypeVNCAuth uint8 = 2
)

// negotiatedVersion is the outcome of ProtocolVersion negotiation: the
// minor version the client agreed to speak.
type negotiatedVersion struct {
	major, minor uint
}

// parseProtocolVersion parses a 12-byte "RFB 00M.0{3,6,7,8,9}\n" or the
// Apple "RFB 003.889\n" variant banner into (major, minor).
func parseProtocolVersion(pv []byte) (uint, uint, error) {
	if len(pv) < pvLen {
		return 0, 0, protocolError("parseProtocolVersion",
			fmt.Sprintf("protocol version message too short (%d < %d)", len(pv), pvLen), nil)
	}

	var major, minor uint
	n, err := fmt.Sscanf(string(pv), "RFB %d.%d\n", &major, &minor)
	if n != 2 || err != nil {
		return 0, 0, protocolError("parseProtocolVersion",
			fmt.Sprintf("invalid protocol version format: %q", string(pv)), err)
	}

	// The Apple Remote Desktop / Screen Sharing quirk: "RFB 003.889\n" is
	// actually minor 8. Keep this mapping as an explicit quirk rather than
	// folding it into the generic minor-number table.
	if major == 3 && minor == 889 {
		minor = 8
	}

	// UltraVNC's "RFB 004.001\n" banner is also just 3.8.
	if major == 4 && minor == 1 {
		major, minor = 3, 8
	}

	return major, minor, nil
}

// negotiateVersion performs ProtocolVersion negotiation: reads the
// server's banner (handling the repeater "000.000" indicator by writing a
// blank proxy-address frame and re-reading), picks the highest minor this
// client supports that the server also supports, and writes the reply
// banner.
func negotiateVersion(ctx context.Context, conn net.Conn, fr *frameReader, fw *frameWriter, validator *InputValidator) (negotiatedVersion, error) {
	for {
		banner, err := fr.readBytes(pvLen)
		if err != nil {
			return negotiatedVersion{}, networkError("negotiateVersion", "failed to read protocol version banner", err)
		}

		if err := validator.ValidateProtocolVersion(string(banner)); err != nil {
			return negotiatedVersion{}, protocolError("negotiateVersion", "server sent invalid protocol version format", err)
		}

		major, minor, err := parseProtocolVersion(banner)
		if err != nil {
			return negotiatedVersion{}, err
		}

		if major == 0 && minor == 0 {
			proxyFrame := make([]byte, repeaterProxyFrameSize)
			if err := fw.writeBytes(proxyFrame); err != nil {
				return negotiatedVersion{}, networkError("negotiateVersion", "failed to write repeater proxy address frame", err)
			}
			continue
		}

		if major < 3 {
			return negotiatedVersion{}, unsupportedError("negotiateVersion",
				fmt.Sprintf("unsupported major version: %d", major), nil)
		}

		chosenMinor := minor
		switch {
		case minor >= 8:
			chosenMinor = 8
		case minor == 7:
			chosenMinor = 7
		default:
			chosenMinor = 3
		}

		reply := fmt.Sprintf("RFB 003.%03d\n", chosenMinor)
		if err := fw.writeBytes([]byte(reply)); err != nil {
			return negotiatedVersion{}, networkError("negotiateVersion", "failed to write protocol version reply", err)
		}

		return negotiatedVersion{major: 3, minor: chosenMinor}, nil
	}
}

// readFailureReason reads the u32-length-prefixed UTF-8 reason string a
// server sends when rejecting security negotiation or authentication.
func readFailureReason(fr *frameReader) string {
	length, err := fr.readU32()
	if err != nil {
		return ""
	}
	reason, err := fr.readString(int(length))
	if err != nil {
		return ""
	}
	return reason
}

// negotiateSecurityTypes reads the server's offered security types per the
// negotiated protocol minor: on 3.3 a single u32 type, on 3.7+ a u8 count
// followed by that many type bytes.
func negotiateSecurityTypes(fr *frameReader, version negotiatedVersion, validator *InputValidator) ([]uint8, error) {
	if version.minor == 3 {
		t, err := fr.readU32()
		if err != nil {
			return nil, networkError("negotiateSecurityTypes", "failed to read security type", err)
		}
		if t == 0 {
			reason := readFailureReason(fr)
			return nil, authenticationError("negotiateSecurityTypes", fmt.Sprintf("security negotiation rejected: %s", reason), nil)
		}
		return []uint8{uint8(t)}, nil // #nosec G115 - RFB 3.3 security types are single bytes widened to u32 on the wire
	}

	count, err := fr.readU8()
	if err != nil {
		return nil, networkError("negotiateSecurityTypes", "failed to read security type count", err)
	}
	if count == 0 {
		reason := readFailureReason(fr)
		return nil, authenticationError("negotiateSecurityTypes", fmt.Sprintf("no security types available: %s", reason), nil)
	}

	types, err := fr.readBytes(int(count))
	if err != nil {
		return nil, networkError("negotiateSecurityTypes", "failed to read security types", err)
	}

	if err := validator.ValidateSecurityTypes(types); err != nil {
		return nil, protocolError("negotiateSecurityTypes", "server sent invalid security types", err)
	}

	return types, nil
}

// readSecurityResult reads the post-authentication SecurityResult word and,
// on failure, the accompanying reason string (3.8+ only).
func readSecurityResult(fr *frameReader, version negotiatedVersion) error {
	result, err := fr.readU32()
	if err != nil {
		return networkError("readSecurityResult", "failed to read security result", err)
	}
	if result == 0 {
		return nil
	}

	var reason string
	if version.minor >= 8 {
		reason = readFailureReason(fr)
	}
	return authenticationError("readSecurityResult", fmt.Sprintf("authentication failed: %s", reason), nil)
}

// serverInitResult carries everything ServerInit delivers: the framebuffer
// geometry, the server's advertised pixel format, and the desktop name.
type serverInitResult struct {
	width, height uint16
	format        PixelFormat
	desktopName   string
}

// readServerInit reads the ServerInit message per §6 item 6.
func readServerInit(fr *frameReader, validator *InputValidator) (serverInitResult, error) {
	width, err := fr.readU16()
	if err != nil {
		return serverInitResult{}, networkError("readServerInit", "failed to read framebuffer width", err)
	}
	height, err := fr.readU16()
	if err != nil {
		return serverInitResult{}, networkError("readServerInit", "failed to read framebuffer height", err)
	}
	if err := validator.ValidateFramebufferDimensions(width, height); err != nil {
		return serverInitResult{}, protocolError("readServerInit", "server sent invalid framebuffer dimensions", err)
	}

	var format PixelFormat
	if err := readPixelFormat(fr.r, &format); err != nil {
		return serverInitResult{}, protocolError("readServerInit", "failed to read pixel format", err)
	}
	if err := format.Validate(); err != nil {
		return serverInitResult{}, protocolError("readServerInit", "server sent invalid pixel format", err)
	}

	nameLength, err := fr.readU32()
	if err != nil {
		return serverInitResult{}, networkError("readServerInit", "failed to read desktop name length", err)
	}
	const maxDesktopNameLength = 1024 * 1024
	if err := validator.ValidateMessageLength(nameLength, maxDesktopNameLength); err != nil {
		return serverInitResult{}, protocolError("readServerInit", "server sent invalid desktop name length", err)
	}

	name, err := fr.readString(int(nameLength))
	if err != nil {
		return serverInitResult{}, networkError("readServerInit", "failed to read desktop name", err)
	}
	if err := validator.ValidateTextData(name, maxDesktopNameLength); err != nil {
		name = validator.SanitizeText(name)
	}

	return serverInitResult{width: width, height: height, format: format, desktopName: name}, nil
}
