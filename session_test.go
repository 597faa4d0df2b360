// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Ryan Johnson

package vnc

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSessionStateString(t *testing.T) {
	require.Equal(t, "Disconnected", StateDisconnected.String())
	require.Equal(t, "Connecting", StateConnecting.String())
	require.Equal(t, "AwaitingPassword", StateAwaitingPassword.String())
	require.Equal(t, "Initializing", StateInitializing.String())
	require.Equal(t, "Connected", StateConnected.String())
	require.Equal(t, "Disconnecting", StateDisconnecting.String())
	require.Equal(t, "Unknown", SessionState(99).String())
}

func TestSessionDisconnectIsNoOpWhenAlreadyDisconnected(t *testing.T) {
	sess := NewSession()
	require.Equal(t, StateDisconnected, sess.State())
	require.NoError(t, sess.Disconnect())
}

func TestSessionAuthenticateRejectsWrongState(t *testing.T) {
	sess := NewSession()
	ok, err := sess.Authenticate(context.Background(), "secret")
	require.Error(t, err)
	require.False(t, ok)
}

func TestSessionInitializeRejectsWrongState(t *testing.T) {
	sess := NewSession()
	err := sess.Initialize(context.Background(), 0, 0)
	require.Error(t, err)
}

func TestSessionStartUpdatesRejectsWrongState(t *testing.T) {
	sess := NewSession()
	err := sess.StartUpdates()
	require.Error(t, err)
}

func TestSessionConnectRejectsWrongState(t *testing.T) {
	sess := NewSession()
	sess.setState(StateConnecting)
	_, err := sess.Connect(context.Background(), "localhost:5900")
	require.Error(t, err)
}

// fakeNoneAuthServer plays the server side of a handshake that negotiates
// RFB 3.8 with security type None and succeeds.
func fakeNoneAuthServer(t *testing.T, conn net.Conn) {
	t.Helper()
	fr := newFrameReader(conn)
	fw := newFrameWriter(conn)

	_, err := conn.Write([]byte("RFB 003.008\n"))
	require.NoError(t, err)

	_, err = fr.readBytes(pvLen)
	require.NoError(t, err)

	require.NoError(t, fw.writeU8(1))
	require.NoError(t, fw.writeU8(SecurityTypeNone))

	secType, err := fr.readU8()
	require.NoError(t, err)
	require.Equal(t, SecurityTypeNone, secType)

	require.NoError(t, fw.writeU32(0))
}

func TestSessionConnectNegotiatesNoneSecurity(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer serverConn.Close()

	serverDone := make(chan struct{})
	go func() {
		defer close(serverDone)
		fakeNoneAuthServer(t, serverConn)
	}()

	sess := NewSession(WithDialFunc(func(ctx context.Context, network, addr string) (net.Conn, error) {
		return clientConn, nil
	}))

	needsAuth, err := sess.Connect(context.Background(), "vnc.example.test:5900")
	require.NoError(t, err)
	require.False(t, needsAuth)
	require.Equal(t, StateInitializing, sess.State())

	<-serverDone
}

func TestSessionConnectAwaitsPasswordForVNCAuth(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer serverConn.Close()
	defer clientConn.Close()

	go func() {
		fr := newFrameReader(serverConn)
		fw := newFrameWriter(serverConn)

		_, _ = serverConn.Write([]byte("RFB 003.008\n"))
		_, _ = fr.readBytes(pvLen)

		_ = fw.writeU8(1)
		_ = fw.writeU8(SecurityTypeVNCAuth)

		_, _ = fr.readU8()
	}()

	sess := NewSession(WithDialFunc(func(ctx context.Context, network, addr string) (net.Conn, error) {
		return clientConn, nil
	}))

	needsAuth, err := sess.Connect(context.Background(), "vnc.example.test:5900")
	require.NoError(t, err)
	require.True(t, needsAuth)
	require.Equal(t, StateAwaitingPassword, sess.State())
}

// TestSessionRunReaderFiresConnectionLostWhenServerCloses closes the server
// side under a live reader: the read fails, the re-requested update cannot
// be written, and OnConnectionLost fires.
func TestSessionRunReaderFiresConnectionLostWhenServerCloses(t *testing.T) {
	clientConn, serverConn := net.Pipe()

	format := trueColorFormat16()
	fb, err := NewFramebuffer(4, 4, *format, "")
	require.NoError(t, err)
	colorMap := NewColorMap()
	pixels, err := newPixelReader(format, colorMap)
	require.NoError(t, err)

	sess := NewSession()
	sess.conn = clientConn
	sess.fr = newFrameReader(clientConn)
	sess.fw = newFrameWriter(clientConn)
	sess.fb = fb
	sess.colorMap = colorMap
	sess.pixels = pixels
	sess.zrle = newCompressedStream(clientConn)
	sess.setState(StateConnected)

	lost := make(chan struct{})
	sess.OnConnectionLost(func() { close(lost) })

	// Drain every FramebufferUpdateRequest the reader writes, then close the
	// server side so the next read fails.
	go func() {
		buf := make([]byte, 64)
		for {
			if _, err := serverConn.Read(buf); err != nil {
				return
			}
		}
	}()

	require.NoError(t, sess.StartUpdates())

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, serverConn.Close())

	select {
	case <-lost:
	case <-time.After(2 * time.Second):
		t.Fatal("OnConnectionLost was not fired after connection closed")
	}

	_ = clientConn.Close()
}

func TestSessionFireConnectionLostOnlyFiresOnce(t *testing.T) {
	sess := NewSession()
	calls := 0
	sess.OnConnectionLost(func() { calls++ })

	sess.fireConnectionLost()
	sess.fireConnectionLost()

	require.Equal(t, 1, calls)
}

func TestSessionRequestFullScreenRefreshIsConsumedOnce(t *testing.T) {
	sess := NewSession()
	sess.RequestFullScreenRefresh()
	require.True(t, sess.fullScreenRefresh.Swap(false))
	require.False(t, sess.fullScreenRefresh.Load())
}

func TestSessionDesktopNameEmptyBeforeInitialize(t *testing.T) {
	sess := NewSession()
	require.Equal(t, "", sess.DesktopName())
}
