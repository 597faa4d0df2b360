// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Ryan Johnson

package vnc

import (
	"context"
	"net"
	"time"
)

// defaultNetworkTimeout is the default read/write/connect timeout per §5.
const defaultNetworkTimeout = 15 * time.Second

// PasswordFunc is invoked when the server requires authentication. It is
// the session's only interface to password acquisition; the core never
// prompts a user itself.
type PasswordFunc func() (string, error)

// DialFunc establishes the transport Connect negotiates the RFB handshake
// over. The default dials plain TCP; WithDialFunc substitutes something
// else, such as DialWebSocket, without the session needing to know.
type DialFunc func(ctx context.Context, network, addr string) (net.Conn, error)

// ClientConfig configures a SessionEngine's connection behavior.
type ClientConfig struct {
	AuthRegistry      *AuthRegistry
	Logger            Logger
	Metrics           MetricsCollector
	Policy            InputPolicy
	ConnectTimeout    time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	PreferredSecurity []uint8
	GetPassword       PasswordFunc
	DesiredBPP        uint8
	DesiredDepth      uint8
	Dial              DialFunc
}

// ClientOption is a functional option for configuring a SessionEngine.
type ClientOption func(*ClientConfig)

// newClientConfig builds a ClientConfig with the defaults every session
// starts from, then applies opts in order.
func newClientConfig(opts ...ClientOption) *ClientConfig {
	cfg := &ClientConfig{
		AuthRegistry:   NewAuthRegistry(),
		Logger:         &NoOpLogger{},
		Metrics:        NoOpMetrics{},
		Policy:         DefaultInputPolicy{},
		ConnectTimeout: defaultNetworkTimeout,
		ReadTimeout:    defaultNetworkTimeout,
		WriteTimeout:   defaultNetworkTimeout,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// WithLogger sets the logger used for connection and protocol logging.
func WithLogger(logger Logger) ClientOption {
	return func(cfg *ClientConfig) { cfg.Logger = logger }
}

// WithMetrics sets the metrics collector used for connection monitoring.
func WithMetrics(metrics MetricsCollector) ClientOption {
	return func(cfg *ClientConfig) { cfg.Metrics = metrics }
}

// WithAuthRegistry overrides the default authentication registry, allowing
// registration of custom security types beyond None and VNC Authentication.
func WithAuthRegistry(registry *AuthRegistry) ClientOption {
	return func(cfg *ClientConfig) { cfg.AuthRegistry = registry }
}

// WithInputPolicy sets the input forwarding policy. Defaults to
// DefaultInputPolicy (forward everything).
func WithInputPolicy(policy InputPolicy) ClientOption {
	return func(cfg *ClientConfig) { cfg.Policy = policy }
}

// WithConnectTimeout sets the timeout for the handshake and initialization
// sequence. Defaults to 15s.
func WithConnectTimeout(timeout time.Duration) ClientOption {
	return func(cfg *ClientConfig) { cfg.ConnectTimeout = timeout }
}

// WithReadTimeout sets the per-read timeout used by the reader task. Defaults to 15s.
func WithReadTimeout(timeout time.Duration) ClientOption {
	return func(cfg *ClientConfig) { cfg.ReadTimeout = timeout }
}

// WithWriteTimeout sets the per-write timeout used by the writer. Defaults to 15s.
func WithWriteTimeout(timeout time.Duration) ClientOption {
	return func(cfg *ClientConfig) { cfg.WriteTimeout = timeout }
}

// WithTimeout sets both read and write timeouts to the same value.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(cfg *ClientConfig) {
		cfg.ReadTimeout = timeout
		cfg.WriteTimeout = timeout
	}
}

// WithPreferredSecurity sets the security type preference order consulted
// during negotiation. Without this option the registry picks the first
// server-offered type it supports, per §9's Open Question resolution.
func WithPreferredSecurity(types ...uint8) ClientOption {
	return func(cfg *ClientConfig) { cfg.PreferredSecurity = types }
}

// WithPasswordFunc sets the callback invoked when the server requires VNC
// Authentication.
func WithPasswordFunc(fn PasswordFunc) ClientOption {
	return func(cfg *ClientConfig) { cfg.GetPassword = fn }
}

// WithDialFunc overrides how Connect opens the transport. Use this with
// DialWebSocket to tunnel the RFB stream over a websockify-style proxy
// instead of dialing plain TCP.
func WithDialFunc(dial DialFunc) ClientOption {
	return func(cfg *ClientConfig) { cfg.Dial = dial }
}

// WithPixelFormat requests that Initialize negotiate the preset pixel
// format matching (bpp, depth) per §6 item 7, instead of accepting the
// server's advertised format unchanged.
func WithPixelFormat(bpp, depth uint8) ClientOption {
	return func(cfg *ClientConfig) {
		cfg.DesiredBPP = bpp
		cfg.DesiredDepth = depth
	}
}
