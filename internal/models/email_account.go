package models

import (
	"time"

	"gorm.io/gorm"

	"github.com/customeros/mailingest/internal/utils"
)

// EmailAccount is an IMAP mailbox owned by a user. The ingestion pipeline only reads it,
// apart from stamping LastIngestedAt after a completed run.
type EmailAccount struct {
	ID                string     `gorm:"column:id;type:varchar(50);primaryKey" json:"id"`
	UserID            string     `gorm:"column:user_id;type:varchar(50);index;not null" json:"userId"`
	EmailAddress      string     `gorm:"column:email_address;type:varchar(255);index;not null" json:"emailAddress"`
	ImapServer        string     `gorm:"column:imap_server;type:varchar(255)" json:"imapServer"`
	ImapPort          int        `gorm:"column:imap_port" json:"imapPort"`
	ImapUsername      string     `gorm:"column:imap_username;type:varchar(255)" json:"imapUsername"`
	ImapTLS           bool       `gorm:"column:imap_tls;not null" json:"imapTls"`
	EncryptedPassword []byte     `gorm:"column:encrypted_password;type:bytea" json:"-"`
	IsActive          bool       `gorm:"column:is_active;not null;index" json:"isActive"`
	LastIngestedAt    *time.Time `gorm:"column:last_ingested_at;type:timestamp" json:"lastIngestedAt"`
	CreatedAt         time.Time  `gorm:"column:created_at;type:timestamp;default:current_timestamp" json:"createdAt"`
	UpdatedAt         time.Time  `gorm:"column:updated_at;type:timestamp;default:current_timestamp" json:"updatedAt"`
}

func (EmailAccount) TableName() string {
	return "email_accounts"
}

func (a *EmailAccount) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = utils.GenerateNanoIDWithPrefix("acct", 16)
	}
	a.CreatedAt = utils.Now()
	return nil
}

// LoginUser is the IMAP login name, falling back to the account address.
func (a *EmailAccount) LoginUser() string {
	return utils.FirstNonEmpty(a.ImapUsername, a.EmailAddress)
}

func (a *EmailAccount) HasServerConfig() bool {
	return a.ImapServer != "" && a.ImapPort > 0 && a.LoginUser() != ""
}
