package model

import "time"

// JobRecord is the on-disk shape of a Job. Instants are epoch milliseconds.
type JobRecord struct {
	Recipients      []Recipient `json:"recipients"`
	MessageTemplate string      `json:"messageTemplate"`
	ScheduledTime   int64       `json:"scheduledTime"`
	Timezone        string      `json:"timezone"`
	CreatedAt       int64       `json:"createdAt"`
	Status          Status      `json:"status"`
}

type ActivityRecord struct {
	Timestamp int64  `json:"timestamp"`
	Message   string `json:"message"`
}

func (j Job) Record() JobRecord {
	recipients := make([]Recipient, len(j.Recipients))
	copy(recipients, j.Recipients)
	return JobRecord{
		Recipients:      recipients,
		MessageTemplate: j.Template,
		ScheduledTime:   j.ScheduledAt.UnixMilli(),
		Timezone:        j.Timezone,
		CreatedAt:       j.CreatedAt.UnixMilli(),
		Status:          j.Status,
	}
}

func (r JobRecord) Job(id string) Job {
	status := r.Status
	if status == "" {
		status = Scheduled
	}
	return Job{
		ID:          id,
		Recipients:  r.Recipients,
		Template:    r.MessageTemplate,
		ScheduledAt: time.UnixMilli(r.ScheduledTime).UTC(),
		Timezone:    r.Timezone,
		CreatedAt:   time.UnixMilli(r.CreatedAt).UTC(),
		Status:      status,
	}
}

func (e ActivityEntry) Record() ActivityRecord {
	return ActivityRecord{Timestamp: e.Timestamp.UnixMilli(), Message: e.Message}
}

func (r ActivityRecord) Entry() ActivityEntry {
	return ActivityEntry{Timestamp: time.UnixMilli(r.Timestamp).UTC(), Message: r.Message}
}
