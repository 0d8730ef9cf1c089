package dto

type MailboxConfig struct {
	AccountID string
	Host      string
	Port      int
	Username  string
	Password  string
	TLS       bool
}

// RawMessage is one fetched message as the server returned it.
type RawMessage struct {
	SeqNum uint32
	UID    uint32
	Raw    []byte
}
