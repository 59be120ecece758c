package wsmon

const (
	OpHello       = "hello"
	OpSubscribe   = "subscribe"
	OpUnsubscribe = "unsubscribe"
	OpEvent       = "event"
)

type HelloMsg struct {
	Op        string   `json:"op"`
	Name      string   `json:"name"`
	Sensors   []string `json:"sensors"`
	Commands  []string `json:"commands"`
	SessionID string   `json:"sessionId,omitempty"`
}

// SubscribeMsg narrows the stream to the named sensor kinds. An empty
// list subscribes to everything, protocol errors included.
type SubscribeMsg struct {
	Op    string   `json:"op"`
	Kinds []string `json:"kinds"`
}

type UnsubscribeMsg struct {
	Op    string   `json:"op"`
	Kinds []string `json:"kinds"`
}

type EventMsg struct {
	Op         string `json:"op"`
	TS         string `json:"ts"`
	Kind       string `json:"kind"`
	Sensor     string `json:"sensor,omitempty"`
	Opcode     string `json:"opcode,omitempty"`
	PayloadHex string `json:"payload_hex,omitempty"`
	Data       any    `json:"data,omitempty"`
	Error      string `json:"error,omitempty"`
}
