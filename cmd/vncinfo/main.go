// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Ryan Johnson

// Command vncinfo connects to a VNC server, completes the handshake and
// authentication, and prints the negotiated framebuffer geometry, pixel
// format, and desktop name. It exercises the public Session API the way any
// external consumer of the module would.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	vnc "github.com/rfbcore/govnc"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var (
		host        string
		port        int
		passwordEnv string
		timeout     time.Duration
		bpp         uint8
		depth       uint8
	)

	cmd := &cobra.Command{
		Use:   "vncinfo",
		Short: "Connect to a VNC server and print its negotiated session info",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInfo(cmd.Context(), host, port, passwordEnv, timeout, bpp, depth)
		},
	}

	cmd.Flags().StringVar(&host, "host", "localhost", "VNC server host")
	cmd.Flags().IntVar(&port, "port", 5900, "VNC server port")
	cmd.Flags().StringVar(&passwordEnv, "password-env", "", "environment variable holding the VNC password")
	cmd.Flags().DurationVar(&timeout, "timeout", 15*time.Second, "connect/handshake timeout")
	cmd.Flags().Uint8Var(&bpp, "bpp", 0, "requested bits-per-pixel preset (0 = accept server default)")
	cmd.Flags().Uint8Var(&depth, "depth", 0, "requested color depth preset (0 = accept server default)")

	return cmd
}

func runInfo(ctx context.Context, host string, port int, passwordEnv string, timeout time.Duration, bpp, depth uint8) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	opts := []vnc.ClientOption{
		vnc.WithLogger(&vnc.StandardLogger{}),
		vnc.WithConnectTimeout(timeout),
		vnc.WithPixelFormat(bpp, depth),
	}
	if passwordEnv != "" {
		opts = append(opts, vnc.WithPasswordFunc(func() (string, error) {
			if pw, ok := os.LookupEnv(passwordEnv); ok {
				return pw, nil
			}
			return "", fmt.Errorf("environment variable %s is not set", passwordEnv)
		}))
	}

	addr := fmt.Sprintf("%s:%d", host, port)
	sess, err := vnc.Connect(ctx, addr, opts...)
	if err != nil {
		return fmt.Errorf("connect to %s: %w", addr, err)
	}
	defer sess.Disconnect()

	fb := sess.Framebuffer()
	fmt.Printf("desktop:     %s\n", sess.DesktopName())
	fmt.Printf("geometry:    %dx%d\n", fb.Width, fb.Height)
	fmt.Printf("pixel format: %d bpp, depth %d, big-endian=%v, true-color=%v\n",
		fb.Format.BPP, fb.Format.Depth, fb.Format.BigEndian, fb.Format.TrueColor)
	fmt.Printf("state:       %s\n", sess.State())

	return nil
}
