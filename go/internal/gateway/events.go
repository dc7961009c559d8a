package gateway

import (
	"time"

	"github.com/DarkIrata/ffxiv-act-minioverlay/go/internal/engine"
	"github.com/DarkIrata/ffxiv-act-minioverlay/go/internal/timers"
)

// MessageType tags every frame sent over the overlay socket
type MessageType string

const (
	MessageTypeTimers    MessageType = "timers"
	MessageTypeDismiss   MessageType = "dismiss"
	MessageTypeDismissed MessageType = "dismissed"
	MessageTypeError     MessageType = "error"
)

// TimersMessage carries one projection of the tracked timers
type TimersMessage struct {
	Type       MessageType `json:"type"`
	ServerTime time.Time   `json:"server_time"`
	Timers     []TimerView `json:"timers"`
}

// TimerView is the wire form of a display timer. Remaining is in seconds
// with sub-second precision; Seconds is the rounded-up label value.
type TimerView struct {
	Key          timers.Key   `json:"key"`
	State        timers.State `json:"state"`
	RemainingSec float64      `json:"remaining_sec"`
	Seconds      int          `json:"seconds"`
	Percentage   float64      `json:"percentage"`
	Width        float64      `json:"width"`
	Job          string       `json:"job"`
	Action       string       `json:"action"`
	Source       string       `json:"source"`
	SubText      string       `json:"sub_text,omitempty"`
	Icon         string       `json:"icon,omitempty"`
}

// ClientMessage is a command sent by an overlay client
type ClientMessage struct {
	Type MessageType `json:"type"`
	Key  string      `json:"key,omitempty"`
}

// DismissedMessage answers a dismiss command
type DismissedMessage struct {
	Type    MessageType `json:"type"`
	Key     string      `json:"key"`
	Removed bool        `json:"removed"`
}

type ErrorMessage struct {
	Type    MessageType `json:"type"`
	Message string      `json:"message"`
}

// NewTimersMessage converts an engine snapshot to its wire form
func NewTimersMessage(snapshot engine.Snapshot) TimersMessage {
	views := make([]TimerView, 0, len(snapshot.Timers))
	for _, t := range snapshot.Timers {
		views = append(views, TimerView{
			Key:          t.Key,
			State:        t.State,
			RemainingSec: t.Remaining.Seconds(),
			Seconds:      t.Seconds(),
			Percentage:   t.Percentage,
			Width:        t.Width(),
			Job:          t.Job,
			Action:       t.ActionName,
			Source:       t.CasterName,
			SubText:      t.SubText,
			Icon:         t.Icon,
		})
	}
	return TimersMessage{
		Type:       MessageTypeTimers,
		ServerTime: snapshot.ServerTime,
		Timers:     views,
	}
}
