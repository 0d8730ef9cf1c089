package models

import (
	"time"

	"gorm.io/gorm"

	"github.com/customeros/mailingest/internal/utils"
)

// Extraction is the structured complaint/suggestion record derived from one message.
// It is written once and never updated.
type Extraction struct {
	ID             string    `gorm:"column:id;type:varchar(50);primaryKey" json:"id"`
	MessageID      string    `gorm:"column:message_id;type:varchar(50);uniqueIndex;not null" json:"messageId"`
	UserID         string    `gorm:"column:user_id;type:varchar(50);index;not null" json:"userId"`
	SubmitterEmail string    `gorm:"column:submitter_email;type:varchar(255);index;not null" json:"submitterEmail"`
	SubmitterName  string    `gorm:"column:submitter_name;type:varchar(255)" json:"submitterName"`
	IssueType      string    `gorm:"column:issue_type;type:varchar(50);not null" json:"issueType"`
	CategoryDetail string    `gorm:"column:category_detail;type:varchar(100)" json:"categoryDetail"`
	ProductService string    `gorm:"column:product_service;type:varchar(100)" json:"productService"`
	Summary        string    `gorm:"column:summary;type:text;not null" json:"summary"`
	Sentiment      string    `gorm:"column:sentiment;type:varchar(50)" json:"sentiment"`
	ExtractedAt    time.Time `gorm:"column:extracted_at;type:timestamp" json:"extractedAt"`
}

func (Extraction) TableName() string {
	return "complaint_suggestions"
}

func (e *Extraction) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = utils.GenerateNanoIDWithPrefix("cmpl", 16)
	}
	if e.ExtractedAt.IsZero() {
		e.ExtractedAt = utils.Now()
	}
	return nil
}
