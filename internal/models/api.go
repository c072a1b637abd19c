package models

import "time"

// DispatchRequest is the create-dispatch payload.
type DispatchRequest struct {
	Contacts        []Contact `json:"contacts"`
	Templates       []string  `json:"templates"`
	CadenceDays     []int     `json:"cadenceDays,omitempty"`
	MinDelayMs      *int64    `json:"minDelayMs,omitempty"`
	MaxDelayMs      *int64    `json:"maxDelayMs,omitempty"`
	PauseEveryN     *int      `json:"pauseEveryN,omitempty"`
	PauseDurationMs *int64    `json:"pauseDurationMs,omitempty"`
	Anchor          *time.Time `json:"anchor,omitempty"`
	SkipWindow      bool      `json:"skipWindow,omitempty"`
	Timezone        string    `json:"timezone,omitempty"`
	ListID          *string   `json:"listId,omitempty"`
	ListName        *string   `json:"listName,omitempty"`

	// TzOffsetMin is accepted for request-shape compatibility but has no
	// behavior attached.
	TzOffsetMin *int `json:"tzOffsetMin,omitempty"`
}

// DispatchResponse reports the created batch and how far the first drain
// slice got.
type DispatchResponse struct {
	BatchID    int64        `json:"batchId"`
	Queued     int          `json:"queued"`
	FirstSlice DrainOutcome `json:"firstSlice"`
}

// ResumeRequest is the resume-dispatch payload.
type ResumeRequest struct {
	// IgnoreWindow is accepted for request-shape compatibility but has no
	// behavior attached.
	IgnoreWindow bool `json:"ignoreWindow,omitempty"`
}

// DrainOutcome describes one bounded drain slice. Partial progress is the
// expected steady state, so a slice always reports success even when
// individual messages failed.
type DrainOutcome struct {
	Processed  int    `json:"processed"`
	ExitReason string `json:"exitReason"`
}

// BatchStatusReport is the aggregate returned to polling clients.
type BatchStatusReport struct {
	Sent         int       `json:"sent"`
	Failed       int       `json:"failed"`
	Queued       int       `json:"queued"`
	InProgress   bool      `json:"inProgress"`
	RecentErrors []Message `json:"recentErrors"`
}

// MediaSendRequest is the synchronous media flow payload.
type MediaSendRequest struct {
	Number   string `json:"number"`
	MediaURL string `json:"mediaUrl"`
	Caption  string `json:"caption,omitempty"`
}

// ErrorResponse is the structured rejection envelope.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}
