package models

import (
	"time"

	"gorm.io/gorm"

	"github.com/customeros/mailingest/internal/enum"
	"github.com/customeros/mailingest/internal/utils"
)

// IngestionRun records the terminal outcome of one attempt for one account.
type IngestionRun struct {
	ID         string         `gorm:"column:id;type:varchar(50);primaryKey" json:"id"`
	AccountID  string         `gorm:"column:account_id;type:varchar(50);index;not null" json:"accountId"`
	Attempt    int            `gorm:"column:attempt;not null" json:"attempt"`
	Status     enum.RunStatus `gorm:"column:status;type:varchar(20);index;not null" json:"status"`
	FinalState enum.RunState  `gorm:"column:final_state;type:varchar(30)" json:"finalState"`
	Reason     string         `gorm:"column:reason;type:text" json:"reason"`
	Processed  int            `gorm:"column:processed" json:"processed"`
	Dropped    int            `gorm:"column:dropped" json:"dropped"`
	Skipped    int            `gorm:"column:skipped" json:"skipped"`
	StartedAt  time.Time      `gorm:"column:started_at;type:timestamp" json:"startedAt"`
	FinishedAt time.Time      `gorm:"column:finished_at;type:timestamp" json:"finishedAt"`
}

func (IngestionRun) TableName() string {
	return "ingestion_runs"
}

func (r *IngestionRun) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = utils.GenerateNanoIDWithPrefix("run", 16)
	}
	return nil
}
