// Package dispatch distributes build shards to workers over WebSocket
// connections. A coordinator hands out shard indices; each worker builds
// its shard locally and reports the verdict back.
package dispatch

import "encoding/json"

// Envelope wraps all messages with a type discriminator.
// When marshaling, Payload can be any message struct.
// When unmarshaling, use EnvelopeRaw for type-based dispatch.
type Envelope struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}

// EnvelopeRaw is used for receiving messages where the payload
// needs to be unmarshaled based on the message type.
type EnvelopeRaw struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// MarshalEnvelope creates an envelope with the given type and payload
func MarshalEnvelope(msgType string, payload interface{}) ([]byte, error) {
	return json.Marshal(Envelope{Type: msgType, Payload: payload})
}

// Worker -> Coordinator messages

// RegisterMessage sent when a worker first connects
type RegisterMessage struct {
	WorkerID string `json:"worker_id"`
}

// RequestMessage sent when a worker wants a shard to build
type RequestMessage struct {
	WorkerID string `json:"worker_id"`
}

// DoneMessage sent when a worker finished its shard
type DoneMessage struct {
	WorkerID   string `json:"worker_id"`
	ShardIndex int    `json:"shard_index"`
	Success    bool   `json:"success"`
	Built      int    `json:"built"`
	Failed     int    `json:"failed"`
	Skipped    int    `json:"skipped"`
	DurationMs int64  `json:"duration_ms"`
}

// Coordinator -> Worker messages

// AssignMessage hands a shard to a worker
type AssignMessage struct {
	ShardIndex int  `json:"shard_index"`
	ShardCount int  `json:"shard_count"`
	TestOnly   bool `json:"test_only"`
}

// NothingMessage tells a worker there are no shards left
type NothingMessage struct{}

// Message type constants
const (
	TypeRegister = "register"
	TypeRequest  = "request"
	TypeDone     = "done"
	TypeAssign   = "assign"
	TypeNothing  = "nothing"
)
