package protocol

import "encoding/json"

const Version = "1.0"

// Message types.
const (
	TypeWelcome  = "WELCOME"
	TypeGenerate = "GENERATE"
	TypeSystem   = "SYSTEM"
	TypeError    = "ERROR"
)

// BaseMessage lets us route unknown JSON messages by type.
type BaseMessage struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version,omitempty"`
	ReqID           string `json:"req_id,omitempty"`
}

func DecodeBase(b []byte) (BaseMessage, error) {
	var m BaseMessage
	err := json.Unmarshal(b, &m)
	return m, err
}

// CompatibleVersion accepts an empty version (older clients) or an exact match.
func CompatibleVersion(v string) bool {
	return v == "" || v == Version
}
