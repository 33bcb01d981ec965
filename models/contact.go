package models

import (
	"time"

	"gorm.io/gorm"
)

// ContactMessage is an append-only contact form submission. The gateway
// only writes this table.
type ContactMessage struct {
	ID        uint   `json:"id" gorm:"primaryKey"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

// TableName matches the table created by the original contact endpoint.
func (ContactMessage) TableName() string { return "contact_messages" }

// BeforeCreate stamps the submission time.
func (m *ContactMessage) BeforeCreate(tx *gorm.DB) error {
	if m.Timestamp == "" {
		m.Timestamp = time.Now().Format(time.RFC3339)
	}
	return nil
}
