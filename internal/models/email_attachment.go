package models

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"gorm.io/gorm"

	"github.com/customeros/mailingest/internal/utils"
)

// EmailAttachment belongs to exactly one message. Content is nil when the payload was too
// large to keep inline; SizeBytes always holds the real size.
type EmailAttachment struct {
	ID          string `gorm:"column:id;type:varchar(50);primaryKey"`
	MessageID   string `gorm:"column:message_id;type:varchar(50);index;not null"`
	Filename    string `gorm:"column:filename;type:varchar(500)"`
	ContentType string `gorm:"column:content_type;type:varchar(255)"`
	ContentID   string `gorm:"column:content_id;type:varchar(255)"`
	IsInline    bool   `gorm:"column:is_inline;not null"`
	SizeBytes   int64  `gorm:"column:size_bytes;not null"`
	Content     []byte `gorm:"column:content;type:bytea"`

	// SHA-256 of Content, empty when the payload was not kept
	ContentHash string `gorm:"column:content_hash;type:varchar(64);index"`

	CreatedAt time.Time `gorm:"column:created_at;type:timestamp;default:current_timestamp"`
}

func (EmailAttachment) TableName() string {
	return "email_attachments"
}

func (e *EmailAttachment) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = utils.GenerateNanoIDWithPrefix("file", 12)
	}
	if e.ContentHash == "" && len(e.Content) > 0 {
		e.ContentHash = HashContent(e.Content)
	}
	e.CreatedAt = utils.Now()
	return nil
}

func HashContent(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}
