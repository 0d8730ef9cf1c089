package config

import (
	"time"
)

type AppConfig struct {
	APIPort     string `env:"PORT,required" envDefault:"12222"`
	APIKey      string `env:"API_KEY,required"`
	RabbitMQURL string `env:"RABBITMQ_URL"`
}

// AIConfig points at an OpenAI-compatible chat completion endpoint. An empty ApiKey leaves the
// classifier on keyword rules and disables extraction.
type AIConfig struct {
	BaseURL string        `env:"AI_BASE_URL" envDefault:"https://api.cerebras.ai/v1"`
	ApiKey  string        `env:"AI_API_KEY"`
	Model   string        `env:"AI_MODEL" envDefault:"llama3.1-8b"`
	Timeout time.Duration `env:"AI_TIMEOUT" envDefault:"30s"`
}

type IngestionConfig struct {
	FernetKey          string        `env:"INGESTION_FERNET_KEY,required"`
	Mailbox            string        `env:"INGESTION_MAILBOX" envDefault:"INBOX"`
	BatchSize          int           `env:"INGESTION_BATCH_SIZE" envDefault:"10"`
	MaxRetries         int           `env:"INGESTION_MAX_RETRIES" envDefault:"3"`
	RetryDelay         time.Duration `env:"INGESTION_RETRY_DELAY" envDefault:"60s"`
	MaxAttachmentBytes int           `env:"INGESTION_MAX_ATTACHMENT_BYTES" envDefault:"1048576"`
	ConnectTimeout     time.Duration `env:"INGESTION_CONNECT_TIMEOUT" envDefault:"30s"`
}
