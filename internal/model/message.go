package model

import (
	"time"
	"unicode/utf8"
)

type Status string

const (
	Scheduled Status = "scheduled"
	Completed Status = "completed"
	Failed    Status = "failed"
)

// DefaultTimezone is the display label stored when a request omits one.
const DefaultTimezone = "Asia/Kolkata"

const previewMax = 100

type Recipient struct {
	Name   string `json:"name"`
	Number string `json:"number"`
}

// Job is a persisted request to deliver one template to a list of recipients
// at ScheduledAt. Recipients are sent in slice order.
type Job struct {
	ID          string
	Recipients  []Recipient
	Template    string
	ScheduledAt time.Time
	Timezone    string
	CreatedAt   time.Time
	Status      Status
}

type ResultStatus string

const (
	ResultSuccess ResultStatus = "success"
	ResultError   ResultStatus = "error"
)

type SendResult struct {
	Name      string       `json:"name"`
	Number    string       `json:"number"`
	Status    ResultStatus `json:"status"`
	Error     string       `json:"error,omitempty"`
	MessageID string       `json:"messageId,omitempty"`
}

type Summary struct {
	Total   int `json:"total"`
	Success int `json:"success"`
	Failed  int `json:"failed"`
}

type ActivityEntry struct {
	Timestamp time.Time
	Message   string
}

// ScheduledView is the listing shape of a pending job.
type ScheduledView struct {
	ID             string    `json:"id"`
	ScheduledTime  time.Time `json:"scheduledTime"`
	Timezone       string    `json:"timezone"`
	RecipientCount int       `json:"recipientCount"`
	MessagePreview string    `json:"messagePreview"`
	Status         Status    `json:"status"`
	CreatedAt      time.Time `json:"createdAt"`
}

func (j Job) View() ScheduledView {
	return ScheduledView{
		ID:             j.ID,
		ScheduledTime:  j.ScheduledAt,
		Timezone:       j.Timezone,
		RecipientCount: len(j.Recipients),
		MessagePreview: Preview(j.Template),
		Status:         j.Status,
		CreatedAt:      j.CreatedAt,
	}
}

// Preview cuts text to its first 100 runes and marks the cut with "...".
func Preview(text string) string {
	if utf8.RuneCountInString(text) <= previewMax {
		return text
	}
	r := []rune(text)
	return string(r[:previewMax]) + "..."
}
