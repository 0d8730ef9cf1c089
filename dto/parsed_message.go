package dto

import "time"

type Address struct {
	Name    string
	Address string
}

type ParsedAttachment struct {
	Filename    string
	ContentType string
	ContentID   string
	IsInline    bool
	SizeBytes   int64
	// Payload is nil when SizeBytes exceeds the inline limit.
	Payload []byte
}

type ParsedMessage struct {
	MessageID     string
	Subject       string
	SenderName    string
	SenderAddress string
	To            []Address
	Cc            []Address
	Bcc           []Address
	SentAt        *time.Time
	BodyText      string
	BodyHTML      string
	Snippet       string
	Headers       map[string][]string
	InReplyTo     string
	References    string
	ReferenceIDs  []string
	Attachments   []ParsedAttachment
}

func AddressList(addresses []Address) []string {
	out := make([]string, 0, len(addresses))
	for _, a := range addresses {
		out = append(out, a.Address)
	}
	return out
}
