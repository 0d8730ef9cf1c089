package services

import (
	"github.com/customeros/mailingest/config"
	"github.com/customeros/mailingest/interfaces"
	"github.com/customeros/mailingest/internal/logger"
	"github.com/customeros/mailingest/internal/repository"
	"github.com/customeros/mailingest/services/ai"
	"github.com/customeros/mailingest/services/classifier"
	"github.com/customeros/mailingest/services/credentials"
	"github.com/customeros/mailingest/services/events"
	"github.com/customeros/mailingest/services/extraction"
	"github.com/customeros/mailingest/services/imap"
	"github.com/customeros/mailingest/services/ingestion"
	"github.com/customeros/mailingest/services/parser"
	"github.com/customeros/mailingest/services/threads"
)

type Services struct {
	// EventsService is nil when no RabbitMQ URL is configured.
	EventsService *events.EventsService
	Credentials   interfaces.CredentialCodec
	MailboxClient interfaces.MailboxClient
	AIClient      interfaces.ChatCompletionClient
	Classifier    interfaces.Classifier
	Orchestrator  *ingestion.Orchestrator
	Runner        *ingestion.Runner
}

func InitServices(cfg *config.Config, log logger.Logger, repos *repository.Repositories) (*Services, error) {
	codec, err := credentials.NewCodec(cfg.IngestionConfig.FernetKey)
	if err != nil {
		return nil, err
	}

	var eventsService *events.EventsService
	var publisher interfaces.EventPublisher
	if cfg.AppConfig.RabbitMQURL != "" {
		// events
		publisherConfig := &events.PublisherConfig{
			MessageTTL:          events.DefaultMessageTTL,
			MaxRetries:          events.DefaultMaxRetries,
			PublishTimeout:      events.DefaultPublishTimeout,
			ReconnectBackoff:    events.DefaultReconnectBackoff,
			MaxReconnectBackoff: events.DefaultMaxReconnectBackoff,
		}

		subscriberConfig := &events.SubscriberConfig{
			MaxRetries:          events.DefaultMaxRetries,
			ReconnectBackoff:    events.DefaultReconnectBackoff,
			MaxReconnectBackoff: events.DefaultMaxReconnectBackoff,
		}

		eventsService, err = events.NewEventsService(cfg.AppConfig.RabbitMQURL, log, publisherConfig, subscriberConfig)
		if err != nil {
			return nil, err
		}
		publisher = eventsService.Publisher
	} else {
		log.Warn("RABBITMQ_URL not set, job queue and completion events are disabled")
	}

	aiClient := ai.NewChatCompletionClient(cfg.AIConfig)
	if !aiClient.IsConfigured() {
		log.Warn("AI backend not configured, classification falls back to rules and extraction is disabled")
	}
	categoryClassifier := classifier.NewClassifier(aiClient, cfg.AIConfig.Model, log)
	mailboxClient := imap.NewMailboxClient(log, cfg.IngestionConfig.ConnectTimeout)

	orchestrator := ingestion.NewOrchestrator(ingestion.Dependencies{
		Repositories: repos,
		Mailbox:      mailboxClient,
		Credentials:  codec,
		Parser:       parser.NewParser(cfg.IngestionConfig.MaxAttachmentBytes),
		Resolver:     threads.NewResolver(log),
		Classifier:   categoryClassifier,
		Extractor:    extraction.NewExtractor(aiClient, cfg.AIConfig.Model, log),
		Log:          log,
	}, ingestion.Config{
		Mailbox:   cfg.IngestionConfig.Mailbox,
		BatchSize: cfg.IngestionConfig.BatchSize,
	})

	runner := ingestion.NewRunner(orchestrator, repos.IngestionRunRepository, publisher, log, ingestion.RunnerConfig{
		MaxRetries: cfg.IngestionConfig.MaxRetries,
		RetryDelay: cfg.IngestionConfig.RetryDelay,
	})

	return &Services{
		EventsService: eventsService,
		Credentials:   codec,
		MailboxClient: mailboxClient,
		AIClient:      aiClient,
		Classifier:    categoryClassifier,
		Orchestrator:  orchestrator,
		Runner:        runner,
	}, nil
}

// Publisher returns the job queue publisher, or nil when events are disabled.
func (s *Services) Publisher() interfaces.EventPublisher {
	if s.EventsService == nil || s.EventsService.Publisher == nil {
		return nil
	}
	return s.EventsService.Publisher
}

func (s *Services) Close() error {
	if s.EventsService == nil {
		return nil
	}
	return s.EventsService.Close()
}
