// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Ryan Johnson

package vnc

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultInputPolicyAllowsEverything(t *testing.T) {
	p := DefaultInputPolicy{}
	require.True(t, p.AllowKeyEvent())
	require.True(t, p.AllowPointerEvent())
	require.True(t, p.AllowClientCutText())
}

func TestViewOnlyInputPolicyDropsInputButKeepsClipboard(t *testing.T) {
	p := ViewOnlyInputPolicy{}
	require.False(t, p.AllowKeyEvent())
	require.False(t, p.AllowPointerEvent())
	require.True(t, p.AllowClientCutText())
}
