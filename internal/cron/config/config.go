package cron_config

type Config struct {
	// Heartbeat check, every minute
	CronScheduleHeartbeat string `env:"CRON_SCHEDULE_HEARTBEAT" envDefault:"0 * * * * *"`
	// Queue an ingestion job per active account, every 5 minutes
	CronScheduleIngestAccounts string `env:"CRON_SCHEDULE_INGEST_ACCOUNTS" envDefault:"0 */5 * * * *"`
}
