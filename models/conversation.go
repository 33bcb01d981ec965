package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ConversationRecord is one answered user query, written best-effort for
// analytics. The chat path never reads it back.
type ConversationRecord struct {
	ID        uint           `json:"id" gorm:"primaryKey"`
	Query     string         `json:"query"`
	Response  string         `json:"response"`
	FollowUps datatypes.JSON `json:"follow_ups,omitempty"`
	Timestamp string         `json:"timestamp"`
}

// TableName keeps the table name the workers expect.
func (ConversationRecord) TableName() string { return "conversation_history" }

// BeforeCreate stamps the timestamp when the caller left it empty.
func (r *ConversationRecord) BeforeCreate(tx *gorm.DB) error {
	if r.Timestamp == "" {
		r.Timestamp = time.Now().Format("2006-01-02 15:04:05")
	}
	return nil
}

// Turn is a single entry of the client-held chat history. The gateway
// forwards at most the last five turns to the chat worker.
type Turn struct {
	Role      string   `json:"role"`
	Text      string   `json:"text"`
	FollowUps []string `json:"followUps,omitempty"`
}

// ChatRequest is the body of POST /api/chat.
type ChatRequest struct {
	Message  string `json:"message" binding:"required"`
	Language string `json:"language"`
	History  []Turn `json:"history"`
}

// ChatResponse is what the chat endpoint always returns, whether the
// answer came from the worker or the fallback responder.
type ChatResponse struct {
	Success   bool     `json:"success"`
	Text      string   `json:"text"`
	FollowUps []string `json:"followUps"`
}

// QueryCount is one row of the analytics report.
type QueryCount struct {
	Query string `json:"query"`
	Count int64  `json:"count"`
}
