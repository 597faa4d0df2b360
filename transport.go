// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Ryan Johnson

package vnc

import (
	"bytes"
	"context"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// DialWebSocket connects to a VNC server tunneled over a WebSocket (the
// noVNC/websockify convention), returning a net.Conn-shaped adapter so the
// rest of the client never needs to know the transport carrying the RFB
// byte stream. header carries any additional HTTP headers the proxy needs
// (e.g. a bearer token); it may be nil.
func DialWebSocket(ctx context.Context, url string, header http.Header) (net.Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: 15 * time.Second}

	ws, _, err := dialer.DialContext(ctx, url, header)
	if err != nil {
		return nil, networkError("DialWebSocket", "failed to establish websocket connection", err)
	}

	return &websocketConn{ws: ws}, nil
}

// websocketConn adapts a *websocket.Conn to net.Conn so frameReader and
// frameWriter can operate over it unmodified. WebSocket carries the RFB byte
// stream as discrete binary messages rather than a continuous stream, so
// reads buffer across message boundaries.
type websocketConn struct {
	ws  *websocket.Conn
	buf bytes.Buffer
}

// Read implements io.Reader, pulling additional binary WebSocket messages
// into the internal buffer as needed.
func (c *websocketConn) Read(b []byte) (int, error) {
	for c.buf.Len() == 0 {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			return 0, err
		}
		c.buf.Write(data)
	}
	return c.buf.Read(b)
}

// Write implements io.Writer, sending b as a single binary WebSocket message.
func (c *websocketConn) Write(b []byte) (int, error) {
	if err := c.ws.WriteMessage(websocket.BinaryMessage, b); err != nil {
		return 0, err
	}
	return len(b), nil
}

// Close closes the underlying WebSocket connection.
func (c *websocketConn) Close() error {
	return c.ws.Close()
}

// LocalAddr returns the underlying connection's local network address.
func (c *websocketConn) LocalAddr() net.Addr { return c.ws.LocalAddr() }

// RemoteAddr returns the underlying connection's remote network address.
func (c *websocketConn) RemoteAddr() net.Addr { return c.ws.RemoteAddr() }

// SetDeadline sets both read and write deadlines on the underlying connection.
func (c *websocketConn) SetDeadline(t time.Time) error {
	if err := c.ws.SetReadDeadline(t); err != nil {
		return err
	}
	return c.ws.SetWriteDeadline(t)
}

// SetReadDeadline sets the read deadline on the underlying connection.
func (c *websocketConn) SetReadDeadline(t time.Time) error {
	return c.ws.SetReadDeadline(t)
}

// SetWriteDeadline sets the write deadline on the underlying connection.
func (c *websocketConn) SetWriteDeadline(t time.Time) error {
	return c.ws.SetWriteDeadline(t)
}
