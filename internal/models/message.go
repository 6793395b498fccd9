package models

import "time"

// Message is a fully-rendered outbound message handed to a transport.
type Message struct {
	Channel Channel `json:"channel"`
	To      string  `json:"to"`
	From    string  `json:"from,omitempty"`
	Subject string  `json:"subject,omitempty"`
	HTML    string  `json:"html,omitempty"`
	Text    string  `json:"text,omitempty"`
}

// SendResult reports the outcome of one pass through the provider chain.
type SendResult struct {
	Success      bool          `json:"success"`
	Provider     string        `json:"provider,omitempty"`
	MessageID    string        `json:"message_id,omitempty"`
	ResponseTime time.Duration `json:"response_time"`
	Error        string        `json:"error,omitempty"`
}

// Recipient is one target of a bulk fan-out. Address resolution depends
// on channel: Email for email jobs, Phone for sms jobs.
type Recipient struct {
	Email  string                 `json:"email,omitempty"`
	Phone  string                 `json:"phone,omitempty"`
	UserID string                 `json:"user_id,omitempty"`
	Data   map[string]interface{} `json:"data,omitempty"`
}

// BulkError records a single recipient failure inside a batch.
type BulkError struct {
	Recipient string `json:"recipient"`
	Error     string `json:"error"`
}

// BulkResult aggregates a whole fan-out. Success is strict: any failed
// recipient makes the batch unsuccessful even though partial delivery
// is fully recorded in Sent/Failed/Errors.
type BulkResult struct {
	Success     bool        `json:"success"`
	Sent        int         `json:"sent"`
	Failed      int         `json:"failed"`
	Total       int         `json:"total"`
	Errors      []BulkError `json:"errors,omitempty"`
	ProcessedAt time.Time   `json:"processed_at"`
}
