package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSignalMessage(t *testing.T) {
	cases := []struct {
		msg   string
		kind  SignalKind
		botID int64
	}{
		{"ENTER-LONG_7", SignalEnterLong, 7},
		{"EXIT-LONG_7", SignalExitLong, 7},
		{"ENTER-SHORT_12", SignalEnterShort, 12},
		{"EXIT-SHORT_12", SignalExitShort, 12},
		{"enter-long_3", SignalEnterLong, 3},
		{"  ENTER-LONG_7  ", SignalEnterLong, 7},
	}
	for _, tc := range cases {
		sig, err := ParseSignalMessage(tc.msg)
		require.NoError(t, err, tc.msg)
		assert.Equal(t, tc.kind, sig.Kind, tc.msg)
		assert.Equal(t, tc.botID, sig.BotID, tc.msg)
		assert.False(t, sig.ReceivedAt.IsZero())
	}
}

func TestParseSignalMessageRejectsMalformed(t *testing.T) {
	for _, msg := range []string{
		"",
		"ENTER-LONG",
		"ENTER-LONG_",
		"_7",
		"HOLD-LONG_7",
		"ENTER-LONG_abc",
		"ENTER-LONG_0",
		"ENTER-LONG_-3",
	} {
		_, err := ParseSignalMessage(msg)
		assert.Error(t, err, "message %q", msg)
	}
}

func TestSignalKindSide(t *testing.T) {
	assert.Equal(t, SideLong, SignalEnterLong.Side())
	assert.Equal(t, SideLong, SignalExitLong.Side())
	assert.Equal(t, SideShort, SignalEnterShort.Side())
	assert.Equal(t, SideShort, SignalExitShort.Side())
	assert.True(t, SignalEnterLong.IsEntry())
	assert.False(t, SignalExitShort.IsEntry())
}
