package handlers

import (
	"github.com/customeros/mailingest/interfaces"
	"github.com/customeros/mailingest/internal/repository"
)

type APIHandlers struct {
	Ingestion *IngestionHandler
}

func InitHandlers(r *repository.Repositories, ingester AccountIngester, publisher interfaces.EventPublisher) *APIHandlers {
	return &APIHandlers{
		Ingestion: NewIngestionHandler(ingester, r.IngestionRunRepository, publisher),
	}
}
