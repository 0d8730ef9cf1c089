package models

import (
	"time"

	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/customeros/mailingest/internal/enum"
	"github.com/customeros/mailingest/internal/utils"
)

// EmailMessage is unique per (user, Message-ID header).
type EmailMessage struct {
	ID              string `gorm:"column:id;type:varchar(50);primaryKey"`
	UserID          string `gorm:"column:user_id;type:varchar(50);not null;uniqueIndex:uix_email_messages_user_message_id,priority:1"`
	AccountID       string `gorm:"column:account_id;type:varchar(50);index;not null"`
	MessageIDHeader string `gorm:"column:message_id_header;type:varchar(998);not null;uniqueIndex:uix_email_messages_user_message_id,priority:2"`
	ThreadID        string `gorm:"column:thread_id;type:varchar(998);index"`
	InReplyTo       string `gorm:"column:in_reply_to;type:varchar(998);index"`
	References      string `gorm:"column:references;type:text"`

	Subject       string         `gorm:"column:subject;type:text"`
	SenderName    string         `gorm:"column:sender_name;type:varchar(255)"`
	SenderAddress string         `gorm:"column:sender_address;type:varchar(255);index"`
	RecipientsTo  pq.StringArray `gorm:"column:recipients_to;type:text[]"`
	RecipientsCc  pq.StringArray `gorm:"column:recipients_cc;type:text[]"`
	RecipientsBcc pq.StringArray `gorm:"column:recipients_bcc;type:text[]"`

	SentAt     *time.Time `gorm:"column:sent_at;type:timestamp;index"`
	ReceivedAt *time.Time `gorm:"column:received_at;type:timestamp;index"`

	BodyText string  `gorm:"column:body_text;type:text"`
	BodyHTML string  `gorm:"column:body_html;type:text"`
	Headers  JSONMap `gorm:"column:headers;type:jsonb"`

	Category          enum.Category `gorm:"column:category;type:varchar(50);index"`
	IsRead            bool          `gorm:"column:is_read;not null"`
	IsFetchedComplete bool          `gorm:"column:is_fetched_complete;not null"`

	Attachments []EmailAttachment `gorm:"foreignKey:MessageID;constraint:OnDelete:CASCADE"`
	Extraction  *Extraction       `gorm:"foreignKey:MessageID;constraint:OnDelete:CASCADE"`

	CreatedAt time.Time `gorm:"column:created_at;type:timestamp;default:current_timestamp"`
	UpdatedAt time.Time `gorm:"column:updated_at;type:timestamp;default:current_timestamp"`
}

func (EmailMessage) TableName() string {
	return "email_messages"
}

func (e *EmailMessage) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = utils.GenerateNanoIDWithPrefix("msg", 24)
	}
	e.CreatedAt = utils.Now()
	return nil
}
