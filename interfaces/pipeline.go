package interfaces

import (
	"context"

	"github.com/customeros/mailingest/dto"
	"github.com/customeros/mailingest/internal/enum"
)

type CredentialCodec interface {
	Encrypt(plaintext string) ([]byte, error)
	// Decrypt fails with ErrCredential.
	Decrypt(ciphertext []byte) (string, error)
}

type MessageParser interface {
	Parse(raw []byte) (*dto.ParsedMessage, error)
}

type Classifier interface {
	Classify(ctx context.Context, sender, subject, snippet string) enum.Category
}
