package domain

// ---------------------------------------------------------------------------
// Shared value objects
// ---------------------------------------------------------------------------

// ConnectionStatus is the lifecycle state of an inbound event connection.
//
//	Idle → Connecting → Connected → (Disconnected → Connecting)* → Terminated
type ConnectionStatus string

const (
	StatusIdle         ConnectionStatus = "idle"
	StatusConnecting   ConnectionStatus = "connecting"
	StatusConnected    ConnectionStatus = "connected"
	StatusDisconnected ConnectionStatus = "disconnected"
	StatusTerminated   ConnectionStatus = "terminated"
)

func (cs ConnectionStatus) String() string { return string(cs) }

// Active reports whether a listen loop is running in this state.
func (cs ConnectionStatus) Active() bool {
	switch cs {
	case StatusConnecting, StatusConnected, StatusDisconnected:
		return true
	default:
		return false
	}
}

// ChannelName identifies this adapter to applications that host several channels.
const ChannelName = "feishu"
