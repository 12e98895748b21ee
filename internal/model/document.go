package model

import (
	"time"

	"gorm.io/gorm"
)

// Document is the metadata row for one stored file. The bytes live in
// the object store under ObjectKey; this row is what obligations and
// email attachments reference.
type Document struct {
	ID           uint           `json:"id" gorm:"primaryKey;autoIncrement"`
	ClientID     uint           `json:"client_id" gorm:"not null;index"`
	ObligationID *uint          `json:"obligation_id" gorm:"index"`
	ObjectKey    string         `json:"object_key" gorm:"type:varchar(512);not null;uniqueIndex"`
	Filename     string         `json:"filename" gorm:"type:varchar(255);not null"`
	Category     string         `json:"category" gorm:"type:varchar(100)"`
	Description  string         `json:"description" gorm:"type:text"`
	SizeBytes    int64          `json:"size_bytes"`
	CreatedAt    time.Time      `json:"created_at"`
	DeletedAt    gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}

// TableName specifies the table name for Document
func (Document) TableName() string {
	return "documents"
}
