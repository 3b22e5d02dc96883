package types

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// SignalKind is the instruction carried by an inbound webhook message.
type SignalKind string

const (
	SignalEnterLong  SignalKind = "ENTER-LONG"
	SignalExitLong   SignalKind = "EXIT-LONG"
	SignalEnterShort SignalKind = "ENTER-SHORT"
	SignalExitShort  SignalKind = "EXIT-SHORT"
)

func (k SignalKind) Valid() bool {
	switch k {
	case SignalEnterLong, SignalExitLong, SignalEnterShort, SignalExitShort:
		return true
	}
	return false
}

// IsEntry reports whether the signal opens a position.
func (k SignalKind) IsEntry() bool {
	return k == SignalEnterLong || k == SignalEnterShort
}

// Side returns the position side the signal refers to.
func (k SignalKind) Side() PositionSide {
	if k == SignalEnterShort || k == SignalExitShort {
		return SideShort
	}
	return SideLong
}

// Signal is one parsed webhook instruction.
type Signal struct {
	ID         int64
	Kind       SignalKind
	BotID      int64
	Symbol     string
	ReceivedAt time.Time
}

// ParseSignalMessage parses the TradingView alert message format
// "ENTER-LONG_<botID>". The bot id is the segment after the last underscore.
func ParseSignalMessage(msg string) (Signal, error) {
	msg = strings.TrimSpace(msg)
	idx := strings.LastIndex(msg, "_")
	if idx <= 0 || idx == len(msg)-1 {
		return Signal{}, fmt.Errorf("malformed signal message %q", msg)
	}
	kind := SignalKind(strings.ToUpper(msg[:idx]))
	if !kind.Valid() {
		return Signal{}, fmt.Errorf("unknown signal kind %q", msg[:idx])
	}
	botID, err := strconv.ParseInt(msg[idx+1:], 10, 64)
	if err != nil || botID <= 0 {
		return Signal{}, fmt.Errorf("invalid bot id in signal message %q", msg)
	}
	return Signal{Kind: kind, BotID: botID, ReceivedAt: time.Now()}, nil
}
