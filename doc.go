// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Ryan Johnson

// Package vnc implements the client side of the Remote Framebuffer (RFB/VNC)
// protocol: handshake, VNC authentication, pixel format negotiation, and
// decoding of the Raw, CopyRect, RRE, CoRRE, Hextile, and ZRLE rectangle
// encodings into an owned ARGB32 framebuffer.
//
// # Basic Usage
//
//	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
//	defer cancel()
//
//	sess, err := vnc.Connect(ctx, "localhost:5900",
//		vnc.WithPasswordFunc(func() (string, error) { return "secret", nil }),
//	)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer sess.Disconnect()
//
//	sess.OnUpdate(func(r vnc.UpdatedRegion) { /* repaint */ })
//	sess.OnConnectionLost(func() { /* notify host */ })
//
//	if err := sess.StartUpdates(); err != nil {
//		log.Fatal(err)
//	}
//
// # Input Events
//
//	sess.WriteKeyEvent(vnc.KeysymReturn, true)
//	sess.WriteKeyEvent(vnc.KeysymReturn, false)
//	sess.WritePointerEvent(vnc.ButtonLeft, 100, 100)
//
// # Error Handling
//
//	if vnc.IsVNCError(err, vnc.ErrAuthentication) {
//		log.Printf("authentication failed: %v", err)
//	}
//
// The display surface, input source, password-acquisition UI, and any
// clipboard/bell/GUI presentation remain the caller's responsibility; this
// package exposes the decoded framebuffer and a small set of event hooks and
// leaves rendering to the host.
package vnc
