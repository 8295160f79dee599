package amqp

import (
	"encoding/json"
	"time"
)

// StateSyncMessage announces that the stored budget state reached Version.
// It carries no payload: the worker reads the state from the repository.
type StateSyncMessage struct {
	Version   int64     `json:"version"`
	Reason    string    `json:"reason,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func NewStateSyncMessage(version int64, reason string) *StateSyncMessage {
	return &StateSyncMessage{
		Version:   version,
		Reason:    reason,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *StateSyncMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func StateSyncMessageFromJSON(data []byte) (*StateSyncMessage, error) {
	var msg StateSyncMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
