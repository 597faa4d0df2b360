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

func TestNewClientConfigDefaults(t *testing.T) {
	cfg := newClientConfig()
	require.Equal(t, defaultNetworkTimeout, cfg.ConnectTimeout)
	require.Equal(t, defaultNetworkTimeout, cfg.ReadTimeout)
	require.Equal(t, defaultNetworkTimeout, cfg.WriteTimeout)
	require.IsType(t, DefaultInputPolicy{}, cfg.Policy)
	require.IsType(t, &NoOpLogger{}, cfg.Logger)
	require.IsType(t, NoOpMetrics{}, cfg.Metrics)
	require.Nil(t, cfg.Dial)
}

func TestWithTimeoutSetsBothReadAndWrite(t *testing.T) {
	cfg := newClientConfig(WithTimeout(5 * time.Second))
	require.Equal(t, 5*time.Second, cfg.ReadTimeout)
	require.Equal(t, 5*time.Second, cfg.WriteTimeout)
}

func TestWithPixelFormatSetsDesiredPreset(t *testing.T) {
	cfg := newClientConfig(WithPixelFormat(16, 16))
	require.Equal(t, uint8(16), cfg.DesiredBPP)
	require.Equal(t, uint8(16), cfg.DesiredDepth)
}

func TestWithDialFuncOverridesDialer(t *testing.T) {
	called := false
	dial := func(ctx context.Context, network, addr string) (net.Conn, error) {
		called = true
		return nil, nil
	}
	cfg := newClientConfig(WithDialFunc(dial))
	require.NotNil(t, cfg.Dial)
	_, _ = cfg.Dial(context.Background(), "tcp", "localhost:5900")
	require.True(t, called)
}

func TestWithPreferredSecuritySetsOrder(t *testing.T) {
	cfg := newClientConfig(WithPreferredSecurity(SecurityTypeVNCAuth, SecurityTypeNone))
	require.Equal(t, []uint8{SecurityTypeVNCAuth, SecurityTypeNone}, cfg.PreferredSecurity)
}
