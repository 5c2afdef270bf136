package amqp

import (
	"encoding/json"
	"time"
)

// BudgetCheckMessage asks a worker to re-evaluate one user's budget
// thresholds. It carries only the user ID; the worker loads current
// state from the database.
type BudgetCheckMessage struct {
	UserID    int64     `json:"user_id"`
	Timestamp time.Time `json:"timestamp"`
}

func NewBudgetCheckMessage(userID int64) *BudgetCheckMessage {
	return &BudgetCheckMessage{
		UserID:    userID,
		Timestamp: time.Now(),
	}
}

func (m *BudgetCheckMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func BudgetCheckMessageFromJSON(data []byte) (*BudgetCheckMessage, error) {
	var msg BudgetCheckMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
