package ws

import "encoding/json"

const (
	// client - server
	MsgPlayed = "played" // playback of the current word finished, start the clock
	MsgInput  = "input"
	MsgSpell  = "spell"
	MsgPing   = "ping"

	// server - client
	MsgReady     = "ready"
	MsgWord      = "word"
	MsgRecording = "recording"
	MsgResult    = "result"
	MsgComplete  = "complete"
	MsgEvent     = "event"
	MsgPong      = "pong"
	MsgError     = "error"
)

// Message is the envelope written to clients.
type Message struct {
	Type  string `json:"type"`
	Value any    `json:"value,omitempty"`
}

// inbound is the envelope read from clients; Value is decoded per type.
type inbound struct {
	Type  string          `json:"type"`
	Value json.RawMessage `json:"value,omitempty"`
}
