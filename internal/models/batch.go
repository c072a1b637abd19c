package models

import "time"

type BatchSource string

const (
	BatchSourceList  BatchSource = "list"
	BatchSourceAdHoc BatchSource = "ad-hoc"
)

type BatchStatus string

const (
	BatchStatusCreated    BatchStatus = "created"
	BatchStatusScheduled  BatchStatus = "scheduled"
	BatchStatusProcessing BatchStatus = "processing"
	BatchStatusDone       BatchStatus = "done"
)

// Batch identifies one dispatch campaign. The drain loop tracks state at
// message granularity; batch status is bookkeeping only.
type Batch struct {
	ID             int64       `json:"id"`
	Instance       string      `json:"instance"`
	SourceKind     BatchSource `json:"sourceKind"`
	SourceListID   *string     `json:"sourceListId,omitempty"`
	SourceListName *string     `json:"sourceListName,omitempty"`
	Status         BatchStatus `json:"status"`
	CreatedAt      time.Time   `json:"createdAt"`
	UpdatedAt      time.Time   `json:"updatedAt"`
}
