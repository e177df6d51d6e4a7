package exchange

// State is the lifecycle of a single exchange: Loaded -> Sent -> {Processed | Failed}.
type State uint8

const (
	// Loaded exchanges are waiting for the loop to serialize them.
	Loaded State = iota

	// Sent exchanges have been handed to the port and await a response.
	Sent

	// Processed exchanges got a terminating response.
	Processed

	// Failed exchanges got an error response or couldn't be encoded or decoded.
	Failed
)

var stateMap = map[State]string{
	Loaded:    "loaded",
	Sent:      "sent",
	Processed: "processed",
	Failed:    "failed",
}

func (s State) String() string {
	n, ok := stateMap[s]
	if !ok {
		return "unknown"
	}
	return n
}

// SocketState is the state of the underlying socket as reported by the port.
type SocketState uint8

const (
	Closed SocketState = iota
	Open
	Closing
)

var socketStateMap = map[SocketState]string{
	Closed:  "closed",
	Open:    "open",
	Closing: "closing",
}

func (s SocketState) String() string {
	n, ok := socketStateMap[s]
	if !ok {
		return "unknown"
	}
	return n
}
