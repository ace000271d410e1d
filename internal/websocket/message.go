package websocket

import "encoding/json"

// Message defines the structure for websocket messages.
type Message struct {
	Action  string      `json:"action"`
	Payload interface{} `json:"payload"`
}

// NewTaskMessage encodes a task change notification.
func NewTaskMessage(action string, task interface{}) ([]byte, error) {
	return json.Marshal(Message{Action: action, Payload: task})
}
