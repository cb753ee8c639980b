package models

import (
	"time"
)

// Notification is a one-way message to a single recipient about a post
type Notification struct {
	ID            string     `json:"id" db:"id"`
	UserID        string     `json:"user_id" db:"user_id"`
	PostID        string     `json:"post_id" db:"post_id"`
	Message       string     `json:"message" db:"message"`
	Read          bool       `json:"read" db:"read"`
	EmailedAt     *time.Time `json:"-" db:"emailed_at"`
	EmailAttempts int        `json:"-" db:"email_attempts"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
}

// NotificationIntent is a notification the workflow wants sent
type NotificationIntent struct {
	RecipientID string
	PostID      string
	Message     string
}

// ImportResult summarises a bulk idea import
type ImportResult struct {
	Total      int               `json:"total"`
	Successful int               `json:"successful"`
	Failed     int               `json:"failed"`
	PostIDs    []string          `json:"post_ids"`
	Errors     []ValidationError `json:"errors,omitempty"`
}

// ValidationError represents a single rejected line of an import
type ValidationError struct {
	Line    int         `json:"line"`
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value,omitempty"`
}

// NotificationList is a recipient's inbox page
type NotificationList struct {
	Items  []*Notification `json:"items"`
	Unread int             `json:"unread"`
}

// MarkReadRequest is the payload for marking notifications read
type MarkReadRequest struct {
	IDs []string `json:"ids" binding:"required,min=1,max=500"`
}
