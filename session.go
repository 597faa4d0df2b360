// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Ryan Johnson

package vnc

import (
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"
)

// SessionState is one state of the SessionEngine's connection lifecycle, per §4.6.
type SessionState int32

// Session states, per §4.6's state machine.
const (
	StateDisconnected SessionState = iota
	StateConnecting
	StateAwaitingPassword
	StateInitializing
	StateConnected
	StateDisconnecting
)

// String returns a human-readable name for the state.
func (s SessionState) String() string {
	switch s {
	case StateDisconnected:
		return "Disconnected"
	case StateConnecting:
		return "Connecting"
	case StateAwaitingPassword:
		return "AwaitingPassword"
	case StateInitializing:
		return "Initializing"
	case StateConnected:
		return "Connected"
	case StateDisconnecting:
		return "Disconnecting"
	default:
		return "Unknown"
	}
}

// UpdatedRegion is the invalidation region carried by an OnUpdate callback.
type UpdatedRegion struct {
	X, Y, Width, Height uint16
}

// UpdateHandler is invoked once per decoded rectangle.
type UpdateHandler func(UpdatedRegion)

// ConnectionLostHandler is invoked at most once per session, when the reader
// task gives up on the connection or an input write fails.
type ConnectionLostHandler func()

// ServerCutTextHandler is invoked when the server pushes new clipboard text.
type ServerCutTextHandler func(text string)

// BellHandler is invoked when the server sends a Bell message.
type BellHandler func()

// disconnectJoinTimeout bounds how long Disconnect waits for the reader task
// to notice the done flag and exit, per §5's cancellation semantics.
const disconnectJoinTimeout = 3 * time.Second

// Session is the SessionEngine: it owns the connection lifecycle, runs the
// background reader loop, and dispatches decoded rectangles and server
// events to the caller's hooks. A Session is single-shot — once Disconnect
// runs, create a new Session to reconnect.
type Session struct {
	cfg *ClientConfig

	conn net.Conn
	fr   *frameReader
	fw   *frameWriter

	writeMu sync.Mutex

	version       negotiatedVersion
	securityTypes []uint8
	auth          ClientAuth
	securityType  uint8

	colorMap *ColorMap
	pixels   *PixelReader
	zrle     *compressedStream
	fb       *Framebuffer

	state             atomic.Int32
	fullScreenRefresh atomic.Bool
	lostFired         atomic.Bool

	done         chan struct{}
	readerExited chan struct{}

	hookMu           sync.RWMutex
	onUpdate         UpdateHandler
	onConnectionLost ConnectionLostHandler
	onServerCutText  ServerCutTextHandler
	onBell           BellHandler
}

// NewSession creates a Session in the Disconnected state, configured by opts.
func NewSession(opts ...ClientOption) *Session {
	return &Session{
		cfg:  newClientConfig(opts...),
		done: make(chan struct{}),
	}
}

// State returns the session's current lifecycle state.
func (s *Session) State() SessionState {
	return SessionState(s.state.Load())
}

func (s *Session) setState(state SessionState) {
	s.state.Store(int32(state))
}

// OnUpdate registers the callback fired once per decoded rectangle.
func (s *Session) OnUpdate(h UpdateHandler) {
	s.hookMu.Lock()
	defer s.hookMu.Unlock()
	s.onUpdate = h
}

// OnConnectionLost registers the callback fired when the reader task exits
// due to a network or decode failure, or when an input write fails.
func (s *Session) OnConnectionLost(h ConnectionLostHandler) {
	s.hookMu.Lock()
	defer s.hookMu.Unlock()
	s.onConnectionLost = h
}

// OnServerCutText registers the callback fired when the server pushes
// clipboard text.
func (s *Session) OnServerCutText(h ServerCutTextHandler) {
	s.hookMu.Lock()
	defer s.hookMu.Unlock()
	s.onServerCutText = h
}

// OnBell registers the callback fired on a server Bell message.
func (s *Session) OnBell(h BellHandler) {
	s.hookMu.Lock()
	defer s.hookMu.Unlock()
	s.onBell = h
}

// RequestFullScreenRefresh asks the reader task to request a non-incremental
// update on its next iteration instead of an incremental one. The flag is
// consumed and cleared by the reader; per §5 it is the one field accessed
// from both the main context and the reader task, so it is atomic.
func (s *Session) RequestFullScreenRefresh() {
	s.fullScreenRefresh.Store(true)
}

// Framebuffer returns the session's live framebuffer. It is safe to read
// from an OnUpdate callback; outside of a callback the reader task may be
// concurrently mutating it.
func (s *Session) Framebuffer() *Framebuffer {
	return s.fb
}

// DesktopName returns the name the server advertised in ServerInit.
func (s *Session) DesktopName() string {
	if s.fb == nil {
		return ""
	}
	return s.fb.DesktopName
}

// Connect opens a TCP connection to addr (host:port, where port is normally
// 5900+display), disables Nagle, and performs ProtocolVersion and Security
// negotiation. It returns whether the negotiated security type requires a
// password via Authenticate.
func (s *Session) Connect(ctx context.Context, addr string) (needsAuth bool, err error) {
	if s.State() != StateDisconnected {
		return false, configurationError("Session.Connect", fmt.Sprintf("cannot connect from state %s", s.State()), nil)
	}
	s.setState(StateConnecting)

	dial := s.cfg.Dial
	if dial == nil {
		dialer := net.Dialer{Timeout: s.cfg.ConnectTimeout}
		dial = dialer.DialContext
	}
	conn, err := dial(ctx, "tcp", addr)
	if err != nil {
		s.setState(StateDisconnected)
		return false, networkError("Session.Connect", fmt.Sprintf("failed to connect to %s", addr), err)
	}
	if tc, ok := conn.(*net.TCPConn); ok {
		if err := tc.SetNoDelay(true); err != nil {
			s.cfg.Logger.Warn("failed to disable Nagle's algorithm", Field{Key: "error", Value: err})
		}
	}

	s.conn = conn
	s.fr = newFrameReader(conn)
	s.fw = newFrameWriter(conn)

	if err := conn.SetDeadline(time.Now().Add(s.cfg.ConnectTimeout)); err != nil {
		s.abortConnect(conn)
		return false, networkError("Session.Connect", "failed to set handshake deadline", err)
	}

	validator := newInputValidator()

	version, err := negotiateVersion(ctx, conn, s.fr, s.fw, validator)
	if err != nil {
		s.abortConnect(conn)
		return false, err
	}
	s.version = version
	s.cfg.Logger.Info("negotiated protocol version",
		Field{Key: "major", Value: version.major}, Field{Key: "minor", Value: version.minor})

	securityTypes, err := negotiateSecurityTypes(s.fr, version, validator)
	if err != nil {
		s.abortConnect(conn)
		return false, err
	}
	s.securityTypes = securityTypes

	auth, securityType, err := s.cfg.AuthRegistry.NegotiateAuth(ctx, securityTypes, s.cfg.PreferredSecurity)
	if err != nil {
		s.abortConnect(conn)
		return false, err
	}
	if logSetter, ok := auth.(interface{ SetLogger(Logger) }); ok {
		logSetter.SetLogger(s.cfg.Logger)
	}
	s.auth = auth
	s.securityType = securityType

	if err := s.fw.writeU8(securityType); err != nil {
		s.abortConnect(conn)
		return false, networkError("Session.Connect", "failed to send selected security type", err)
	}

	if securityType == SecurityTypeVNCAuth {
		s.setState(StateAwaitingPassword)
		return true, nil
	}

	if err := s.runSecurityHandshake(ctx); err != nil {
		s.abortConnect(conn)
		return false, err
	}

	s.setState(StateInitializing)
	return false, nil
}

// abortConnect closes conn and resets the session to Disconnected after a
// failed Connect or Authenticate, per the fatal-error policy in §7.
func (s *Session) abortConnect(conn net.Conn) {
	_ = conn.Close()
	s.setState(StateDisconnected)
}

// runSecurityHandshake runs the negotiated auth method's challenge/response
// and reads the SecurityResult that follows it.
func (s *Session) runSecurityHandshake(ctx context.Context) error {
	if err := s.auth.Handshake(ctx, s.conn); err != nil {
		return authenticationError("Session.runSecurityHandshake", "authentication handshake failed", err)
	}
	if err := readSecurityResult(s.fr, s.version); err != nil {
		return err
	}
	return nil
}

// Authenticate supplies the password for VNC Authentication (security type
// 2), only valid from AwaitingPassword. On success the session advances to
// Initializing; on failure it closes the connection and returns to
// Disconnected, per §4.6 and §7.
func (s *Session) Authenticate(ctx context.Context, password string) (ok bool, err error) {
	if s.State() != StateAwaitingPassword {
		return false, configurationError("Session.Authenticate", fmt.Sprintf("cannot authenticate from state %s", s.State()), nil)
	}

	pwAuth, isPassword := s.auth.(*PasswordAuth)
	if !isPassword {
		return false, configurationError("Session.Authenticate", "negotiated security type does not take a password", nil)
	}
	pwAuth.Password = password
	defer pwAuth.ClearPassword()

	if err := s.cfg.AuthRegistry.ValidateAuthMethod(s.auth); err != nil {
		s.abortConnect(s.conn)
		return false, authenticationError("Session.Authenticate", "authentication method validation failed", err)
	}

	if err := s.runSecurityHandshake(ctx); err != nil {
		s.abortConnect(s.conn)
		return false, nil
	}

	s.setState(StateInitializing)
	return true, nil
}

// Initialize sends ClientInit, reads ServerInit, constructs the Framebuffer,
// advertises the client's supported encodings, and optionally requests a
// preset pixel format for (bitsPerPixel, depth), per §4.6 and §6 items 5-8.
// Pass (0, 0) to accept the server's advertised pixel format unchanged.
func (s *Session) Initialize(ctx context.Context, bitsPerPixel, depth uint8) error {
	if s.State() != StateInitializing {
		return configurationError("Session.Initialize", fmt.Sprintf("cannot initialize from state %s", s.State()), nil)
	}

	const sharedFlag uint8 = 1
	if err := s.fw.writeU8(sharedFlag); err != nil {
		return networkError("Session.Initialize", "failed to send ClientInit", err)
	}

	validator := newInputValidator()
	serverInit, err := readServerInit(s.fr, validator)
	if err != nil {
		return err
	}

	fb, err := NewFramebuffer(serverInit.width, serverInit.height, serverInit.format, serverInit.desktopName)
	if err != nil {
		return err
	}
	s.fb = fb
	s.colorMap = NewColorMap()

	pixels, err := newPixelReader(&serverInit.format, s.colorMap)
	if err != nil {
		return err
	}
	s.pixels = pixels
	s.zrle = newCompressedStream(s.conn)

	if err := s.writeLocked(func(fw *frameWriter) error {
		return writeSetEncodings(fw, preferredEncodingOrder)
	}); err != nil {
		return err
	}

	if preset, ok := pixelFormatForPreset(bitsPerPixel, depth); ok {
		if err := s.writeLocked(func(fw *frameWriter) error {
			return writeSetPixelFormat(fw, preset)
		}); err != nil {
			return err
		}
		s.pixels, err = newPixelReader(preset, s.colorMap)
		if err != nil {
			return err
		}
		s.fb.Format = *preset
	}

	if err := s.conn.SetDeadline(time.Time{}); err != nil {
		return networkError("Session.Initialize", "failed to clear handshake deadline", err)
	}

	s.setState(StateConnected)
	return nil
}

// StartUpdates spawns the reader task, which issues the first
// FramebufferUpdateRequest and then owns the read half of the connection
// for the rest of the session's life.
func (s *Session) StartUpdates() error {
	if s.State() != StateConnected {
		return configurationError("Session.StartUpdates", fmt.Sprintf("cannot start updates from state %s", s.State()), nil)
	}
	s.readerExited = make(chan struct{})
	go s.runReader()
	return nil
}

// writeLocked serializes fn against every other writer, per §5's single-
// writer-mutex model, and applies the configured write deadline first.
func (s *Session) writeLocked(fn func(fw *frameWriter) error) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := s.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout)); err != nil {
		return networkError("Session.writeLocked", "failed to set write deadline", err)
	}
	return fn(s.fw)
}

// WriteKeyEvent forwards a KeyEvent unless the InputPolicy drops it.
func (s *Session) WriteKeyEvent(keysym Keysym, down bool) error {
	if !s.cfg.Policy.AllowKeyEvent() {
		return nil
	}
	err := s.writeLocked(func(fw *frameWriter) error {
		return writeKeyEvent(fw, uint32(keysym), down)
	})
	if err != nil {
		s.fireConnectionLost()
	}
	return err
}

// WritePointerEvent forwards a PointerEvent unless the InputPolicy drops it.
func (s *Session) WritePointerEvent(mask ButtonMask, x, y uint16) error {
	if !s.cfg.Policy.AllowPointerEvent() {
		return nil
	}
	err := s.writeLocked(func(fw *frameWriter) error {
		return writePointerEvent(fw, mask, x, y)
	})
	if err != nil {
		s.fireConnectionLost()
	}
	return err
}

// WriteClientCutText forwards a ClientCutText unless the InputPolicy drops it.
func (s *Session) WriteClientCutText(text string) error {
	if !s.cfg.Policy.AllowClientCutText() {
		return nil
	}
	err := s.writeLocked(func(fw *frameWriter) error {
		return writeClientCutText(fw, text)
	})
	if err != nil {
		s.fireConnectionLost()
	}
	return err
}

// Disconnect signals the reader task, writes a 1x1 incremental update
// request to unblock a pending read, waits up to 3s for the reader to exit,
// and closes the socket. Safe to call even if StartUpdates was never called.
func (s *Session) Disconnect() error {
	state := s.State()
	if state == StateDisconnected {
		return nil
	}
	s.setState(StateDisconnecting)
	close(s.done)

	if s.readerExited != nil {
		_ = s.writeLocked(func(fw *frameWriter) error {
			return writeFramebufferUpdateRequest(fw, true, 0, 0, 1, 1)
		})

		select {
		case <-s.readerExited:
		case <-time.After(disconnectJoinTimeout):
			s.cfg.Logger.Warn("reader task did not exit within the disconnect join timeout")
		}
	}

	err := s.conn.Close()
	s.setState(StateDisconnected)
	return err
}

// requestUpdate issues the next FramebufferUpdateRequest, consuming and
// clearing FullScreenRefresh to decide incremental vs. full, per §5.
func (s *Session) requestUpdate() error {
	fullScreen := s.fullScreenRefresh.Swap(false)
	return s.writeLocked(func(fw *frameWriter) error {
		return writeFramebufferUpdateRequest(fw, !fullScreen, 0, 0, s.fb.Width, s.fb.Height)
	})
}

// fireConnectionLost invokes the OnConnectionLost hook at most once.
func (s *Session) fireConnectionLost() {
	if !s.lostFired.CompareAndSwap(false, true) {
		return
	}
	s.cfg.Metrics.Counter("connection_lost")
	s.hookMu.RLock()
	h := s.onConnectionLost
	s.hookMu.RUnlock()
	if h != nil {
		h()
	}
}

// runReader is the background reader task started by StartUpdates. It owns
// the read half of the connection, the pixel reader, the ZRLE substream,
// and the framebuffer for the rest of the session's life. It applies the
// two-strike failure policy from §5/§7: a read failure re-requests an
// update as a no-activity tick; a second consecutive failure fires
// on_connection_lost and exits.
func (s *Session) runReader() {
	defer close(s.readerExited)

	if err := s.requestUpdate(); err != nil {
		s.fireConnectionLost()
		return
	}

	consecutiveFailures := 0
	for {
		select {
		case <-s.done:
			return
		default:
		}

		if err := s.conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout)); err != nil {
			s.fireConnectionLost()
			return
		}

		msgType, err := s.fr.readU8()
		if err != nil {
			select {
			case <-s.done:
				return
			default:
			}

			consecutiveFailures++
			if consecutiveFailures >= 2 {
				s.fireConnectionLost()
				return
			}
			if err := s.requestUpdate(); err != nil {
				s.fireConnectionLost()
				return
			}
			continue
		}
		consecutiveFailures = 0

		if err := s.dispatchServerMessage(msgType); err != nil {
			s.cfg.Logger.Error("fatal error decoding server message", Field{Key: "error", Value: err})
			s.fireConnectionLost()
			return
		}

		select {
		case <-s.done:
			return
		default:
		}

		if err := s.requestUpdate(); err != nil {
			s.fireConnectionLost()
			return
		}
	}
}

// dispatchServerMessage reads and handles one server message after its type
// byte has already been consumed, per §6 item 13.
func (s *Session) dispatchServerMessage(msgType uint8) error {
	validator := newInputValidator()

	switch msgType {
	case msgFramebufferUpdate:
		ctx := &decodeContext{fr: s.fr, pixels: s.pixels, zrle: s.zrle, fb: s.fb}
		result, err := readFramebufferUpdate(ctx, validator)
		if err != nil {
			return err
		}
		s.hookMu.RLock()
		onUpdate := s.onUpdate
		s.hookMu.RUnlock()
		for _, rect := range result.rectangles {
			s.cfg.Metrics.Counter("rectangles_decoded", "encoding", rect.Encoding)
			if onUpdate != nil {
				onUpdate(UpdatedRegion{X: rect.X, Y: rect.Y, Width: rect.Width, Height: rect.Height})
			}
		}
		return nil

	case msgSetColourMapEntries:
		return readSetColourMapEntries(s.fr, s.colorMap, validator)

	case msgBell:
		s.hookMu.RLock()
		onBell := s.onBell
		s.hookMu.RUnlock()
		if onBell != nil {
			onBell()
		}
		return nil

	case msgServerCutText:
		text, err := readServerCutText(s.fr, validator)
		if err != nil {
			return err
		}
		s.hookMu.RLock()
		onCutText := s.onServerCutText
		s.hookMu.RUnlock()
		if onCutText != nil {
			onCutText(text)
		}
		return nil

	default:
		return protocolError("Session.dispatchServerMessage", fmt.Sprintf("unknown server message type: %d", msgType), nil)
	}
}

// Connect is a convenience constructor that runs the full state machine up
// through Connected: it dials addr, negotiates security, authenticates via
// cfg.GetPassword if the server requires a password, and initializes the
// framebuffer. Callers that need to prompt interactively between Connect and
// Authenticate should use NewSession and drive the state machine directly
// instead.
func Connect(ctx context.Context, addr string, opts ...ClientOption) (*Session, error) {
	sess := NewSession(opts...)

	needsAuth, err := sess.Connect(ctx, addr)
	if err != nil {
		return nil, err
	}

	if needsAuth {
		if sess.cfg.GetPassword == nil {
			_ = sess.Disconnect()
			return nil, configurationError("Connect", "server requires a password but no GetPassword callback was configured", nil)
		}
		password, err := sess.cfg.GetPassword()
		if err != nil {
			_ = sess.Disconnect()
			return nil, authenticationError("Connect", "password callback failed", err)
		}
		ok, err := sess.Authenticate(ctx, password)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, authenticationError("Connect", "authentication rejected by server", nil)
		}
	}

	if err := sess.Initialize(ctx, sess.cfg.DesiredBPP, sess.cfg.DesiredDepth); err != nil {
		_ = sess.Disconnect()
		return nil, err
	}

	return sess, nil
}
