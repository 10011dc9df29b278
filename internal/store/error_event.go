package store

import "time"

// Lifecycle states for an error event. The only transition the
// pipeline performs is StatusProcessing to StatusResolved.
const (
	StatusProcessing = "processing"
	StatusResolved   = "resolved"
)

// ErrorEvent is the persisted unit of work. ReferenceID is the
// externally supplied correlation key; it is indexed but not unique,
// reconciliation resolves the newest row carrying it.
type ErrorEvent struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	Source       *string    `gorm:"size:200" json:"source"`
	Function     *string    `gorm:"size:200" json:"function"`
	Message      *string    `gorm:"type:text" json:"message"`
	MessageShort *string    `gorm:"size:255" json:"messageShort"`
	ReferenceID  *string    `gorm:"size:200;index" json:"referenceId"`
	StackTrace   *string    `gorm:"type:text" json:"stackTrace"`
	LogCode      *string    `gorm:"size:100" json:"logCode"`
	CreatedDate  *time.Time `json:"createdDate"`
	Status       string     `gorm:"size:50;not null;default:processing" json:"status"`
	CreatedAt    time.Time  `gorm:"autoCreateTime" json:"createdAt"`
}

func (ErrorEvent) TableName() string {
	return "error_events"
}
