package ws

import "github.com/Visual-Illusions/NewU/internal/model"

// Frame types sent by the host engine.
const (
	TypeMoved        = "moved"
	TypeRespawning   = "respawning"
	TypeRespawned    = "respawned"
	TypeDisconnected = "disconnected"
	TypeCommand      = "command"
	TypePing         = "ping"

	TypeReply = "reply"
)

// Frame is one host event.
type Frame struct {
	Seq        uint64      `json:"seq"`
	Type       string      `json:"type"`
	Actor      model.Actor `json:"actor"`
	WorldSpawn *model.Pose `json:"world_spawn,omitempty"`
	Line       string      `json:"line,omitempty"`
}

// Reply answers exactly one Frame, matched by Seq.
type Reply struct {
	Seq      uint64          `json:"seq"`
	Type     string          `json:"type"`
	Pose     *model.Pose     `json:"pose,omitempty"`
	Messages []model.Message `json:"messages"`
	Fee      float64         `json:"fee,omitempty"`
	Handled  bool            `json:"handled,omitempty"`
	Error    string          `json:"error,omitempty"`
}
