package dto

import "github.com/customeros/mailingest/internal/enum"

type Event struct {
	Event    EventDetails  `json:"event"`
	Metadata EventMetadata `json:"metadata"`
}

type EventDetails struct {
	Id         string          `json:"id"`
	EntityId   string          `json:"entityId"`
	EntityType enum.EntityType `json:"entityType"`
	EventType  string          `json:"eventType"`
	Data       interface{}     `json:"data"`
}

type EventMetadata struct {
	UberTraceId   string `json:"uber-trace-id"`
	CorrelationId string `json:"correlationId"`
	AppSource     string `json:"appSource"`
	UserId        string `json:"userId"`
	Timestamp     string `json:"timestamp"`
}
