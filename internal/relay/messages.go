package relay

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/woowenjun99/CG4002-Evaluation-Server/internal/protocol"
	"github.com/woowenjun99/CG4002-Evaluation-Server/internal/scenario"
)

// MessageType selects how the viewer renders a message.
type MessageType string

const (
	TypeAction      MessageType = "action"
	TypeActionMatch MessageType = "action_match"
	TypeError       MessageType = "error"
	TypeInfo        MessageType = "info"
	// TypeInfoY is rendered in yellow.
	TypeInfoY MessageType = "info_y"
	// TypeInfoWOBR is rendered without a trailing line break.
	TypeInfoWOBR MessageType = "info_wobr"
	TypeNumMove  MessageType = "num_move"
	TypePosition MessageType = "position"
)

// Defaults carried by messages that do not set the field.
const (
	noPosition    = -1
	noActionMatch = -2
	noPlayer      = -1
)

const separator = "------------"

// Message is the single JSON shape sent to the viewer. Action messages
// reuse the position slots for the two action names.
type Message struct {
	Type        MessageType `json:"type"`
	Message     string      `json:"message"`
	Pos1        any         `json:"pos_1"`
	Pos2        any         `json:"pos_2"`
	ActionMatch int         `json:"action_match"`
	PlayerID    int         `json:"player_id"`
}

func newMessage(typ MessageType, text string) Message {
	return Message{
		Type:        typ,
		Message:     text,
		Pos1:        noPosition,
		Pos2:        noPosition,
		ActionMatch: noActionMatch,
		PlayerID:    noPlayer,
	}
}

func positionMessage(p1, p2 scenario.Quadrant) Message {
	msg := newMessage(TypePosition, "")
	msg.Pos1, msg.Pos2 = int(p1), int(p2)
	return msg
}

func actionMessage(a1, a2 scenario.Action) Message {
	msg := newMessage(TypeAction, "")
	msg.Pos1, msg.Pos2 = a1.String(), a2.String()
	return msg
}

func actionMatchMessage(match, playerID int, text string) Message {
	msg := newMessage(TypeActionMatch, text)
	msg.ActionMatch = match
	msg.PlayerID = playerID
	return msg
}

// Handshake is the first message a viewer sends.
type Handshake struct {
	GroupName    string  `json:"group_name" jsonschema:"required,minLength=1,description=Team name"`
	Password     string  `json:"password" jsonschema:"required,description=Shared AES secret of 16 24 or 32 bytes"`
	NumPlayer    flexInt `json:"num_player" jsonschema:"required,enum=1,enum=2"`
	NoVisualizer flexInt `json:"no_visualizer" jsonschema:"required,description=Non-zero when the team plays without a visualizer"`
}

// HasVisualizer reports whether the team runs the fire/visibility rules.
func (h Handshake) HasVisualizer() bool {
	return h.NoVisualizer == 0
}

// flexInt accepts both 2 and "2", as browsers send form values as strings.
type flexInt int

func (n *flexInt) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var text string
		if err := json.Unmarshal(data, &text); err != nil {
			return err
		}
		data = []byte(strings.TrimSpace(text))
	}
	v, err := strconv.Atoi(string(data))
	if err != nil {
		return fmt.Errorf("not an integer: %s", data)
	}
	*n = flexInt(v)
	return nil
}

// ParseHandshake decodes the viewer handshake. Every field is required.
func ParseHandshake(data []byte) (Handshake, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return Handshake{}, fmt.Errorf("decode handshake: %w", err)
	}
	for _, key := range []string{"group_name", "password", "num_player", "no_visualizer"} {
		if _, ok := raw[key]; !ok {
			return Handshake{}, fmt.Errorf("decode handshake: missing %q", key)
		}
	}
	var hs Handshake
	if err := json.Unmarshal(data, &hs); err != nil {
		return Handshake{}, fmt.Errorf("decode handshake: %w", err)
	}
	return hs, nil
}

func init() {
	protocol.RegisterSchema("handshake", Handshake{}, "Viewer handshake", "First websocket message sent by the viewer to open an evaluation session.")
}
