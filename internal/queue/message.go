package queue

import (
	"encoding/json"
	"fmt"
)

// MessageVersion is bumped whenever Message changes shape.
const MessageVersion = 1

// Message announces that a job reached a terminal status.
type Message struct {
	JobID        string `json:"jobId"`
	BackendJobID string `json:"backendJobId,omitempty"`
	Status       string `json:"status"`
	Error        string `json:"error,omitempty"`
	OccurredAt   string `json:"occurredAt"`
	Version      int    `json:"version"`
}

// EncodeMessage returns the JSON representation of a message.
func EncodeMessage(msg Message) ([]byte, error) {
	if msg.JobID == "" {
		return nil, fmt.Errorf("queue message missing jobId")
	}
	if msg.Version == 0 {
		msg.Version = MessageVersion
	}
	return json.Marshal(msg)
}

// DecodeMessage parses a JSON payload into a Message.
func DecodeMessage(payload []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		return Message{}, err
	}
	if msg.Version > MessageVersion {
		return Message{}, fmt.Errorf("queue message version %d not supported", msg.Version)
	}
	return msg, nil
}
