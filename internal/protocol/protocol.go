package protocol

import "encoding/json"

const Version = "1.0"

// Message types.
const (
	TypeHello       = "HELLO"
	TypeWelcome     = "WELCOME"
	TypeMove        = "MOVE"
	TypeChunks      = "CHUNKS"
	TypeUnderground = "UNDERGROUND"
	TypeAct         = "ACT"
	TypeActResult   = "ACT_RESULT"
	TypeError       = "ERROR"
)

// Action kinds carried by ACT.
const (
	ActMine    = "MINE"
	ActTill    = "TILL"
	ActWater   = "WATER"
	ActPlant   = "PLANT"
	ActHarvest = "HARVEST"
)

// BaseMessage lets us route unknown JSON messages by type.
type BaseMessage struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version,omitempty"`
}

func DecodeBase(b []byte) (BaseMessage, error) {
	var m BaseMessage
	err := json.Unmarshal(b, &m)
	return m, err
}
