package dto

// IngestAccount asks a worker to run the ingestion pipeline for one account.
type IngestAccount struct {
	AccountID string `json:"accountId"`
	Trigger   string `json:"trigger"`
}

// IngestionCompleted is published on the notifications exchange after a run reaches a terminal status.
type IngestionCompleted struct {
	AccountID string `json:"accountId"`
	Status    string `json:"status"`
	Reason    string `json:"reason,omitempty"`
	Processed int    `json:"processed"`
	Dropped   int    `json:"dropped"`
	Skipped   int    `json:"skipped"`
	Attempts  int    `json:"attempts"`
}
