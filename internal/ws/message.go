package ws

import "encoding/json"

// Trainer -> Server message types
const (
	MsgReset        uint8 = 0x01
	MsgStep         uint8 = 0x02
	MsgPing         uint8 = 0x04
	MsgSavePolicy   uint8 = 0x05
	MsgTrainingDone uint8 = 0x06
)

// Server -> Client message types
const (
	MsgObservation uint8 = 0x81
	MsgEnvInfo     uint8 = 0x82
	MsgStepResult  uint8 = 0x83
	MsgFrame       uint8 = 0x84
	MsgScene       uint8 = 0x85
	MsgPong        uint8 = 0x86
	MsgError       uint8 = 0x88
	MsgPolicySaved uint8 = 0x89
)

// Error codes carried by MsgError.
const (
	CodeInvalidArgument = "invalid_argument"
	CodeResetRequired   = "reset_required"
	CodeUnknownMessage  = "unknown_message"
	CodeStorage         = "storage"
	CodeUnavailable     = "unavailable"
)

// Message is the envelope for every frame on the wire. Seq is the episode
// number the message belongs to.
type Message struct {
	Type    uint8           `json:"type"`
	Seq     uint32          `json:"seq"`
	Payload json.RawMessage `json:"payload"`
}

type ResetPayload struct {
	Seed *uint64 `json:"seed,omitempty"`
}

type StepPayload struct {
	Action []float64 `json:"action"`
}

type SavePolicyPayload struct {
	Name     string `json:"name"`
	Artifact []byte `json:"artifact"`
}

type PingPayload struct {
	ClientTime uint64 `json:"clientTime"`
}

// Space describes a bounded box, in the shape learning libraries expect.
type Space struct {
	Low   []float64 `json:"low"`
	High  []float64 `json:"high"`
	Shape []int     `json:"shape"`
}

type EnvInfoPayload struct {
	SessionID        string `json:"sessionId"`
	EnvID            string `json:"envId"`
	ActionSpace      Space  `json:"actionSpace"`
	ObservationSpace Space  `json:"observationSpace"`
	PolicyName       string `json:"policyName"`
	Timesteps        int    `json:"timesteps"`
}

type ObservationPayload struct {
	Observation []float64      `json:"observation"`
	Info        map[string]any `json:"info"`
}

type StepResultPayload struct {
	Observation []float64      `json:"observation"`
	Reward      float64        `json:"reward"`
	Terminated  bool           `json:"terminated"`
	Truncated   bool           `json:"truncated"`
	Info        map[string]any `json:"info"`
}

type PongPayload struct {
	ClientTime uint64 `json:"clientTime"`
	ServerTime uint64 `json:"serverTime"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type PolicySavedPayload struct {
	Name  string `json:"name"`
	Bytes int    `json:"bytes"`
}

func Encode(msg Message) ([]byte, error) {
	return json.Marshal(msg)
}

func Decode(data []byte) (Message, error) {
	var msg Message
	err := json.Unmarshal(data, &msg)
	return msg, err
}

func NewMessage(typ uint8, seq uint32, payload any) (Message, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Message{}, err
	}
	return Message{
		Type:    typ,
		Seq:     seq,
		Payload: json.RawMessage(data),
	}, nil
}
