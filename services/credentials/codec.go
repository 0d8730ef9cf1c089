package credentials

import (
	"strings"
	"time"

	"github.com/fernet/fernet-go"
	"github.com/pkg/errors"

	"github.com/customeros/mailingest/interfaces"
	mailerrors "github.com/customeros/mailingest/internal/errors"
)

// stored passwords never expire
const noExpiry = time.Duration(-1)

type fernetCodec struct {
	keys []*fernet.Key
}

// NewCodec builds a Fernet codec from one or more comma separated url-safe base64 keys.
// The first key encrypts; every key is tried on decrypt so keys can be rotated.
func NewCodec(encodedKeys string) (interfaces.CredentialCodec, error) {
	var keys []*fernet.Key
	for _, encoded := range strings.Split(encodedKeys, ",") {
		encoded = strings.TrimSpace(encoded)
		if encoded == "" {
			continue
		}
		key, err := fernet.DecodeKey(encoded)
		if err != nil {
			return nil, errors.Wrap(mailerrors.ErrCredentialKeyInvalid, err.Error())
		}
		keys = append(keys, key)
	}
	if len(keys) == 0 {
		return nil, mailerrors.ErrCredentialKeyInvalid
	}
	return &fernetCodec{keys: keys}, nil
}

func (c *fernetCodec) Encrypt(plaintext string) ([]byte, error) {
	token, err := fernet.EncryptAndSign([]byte(plaintext), c.keys[0])
	if err != nil {
		return nil, errors.Wrap(mailerrors.ErrCredential, err.Error())
	}
	return token, nil
}

func (c *fernetCodec) Decrypt(ciphertext []byte) (string, error) {
	if len(ciphertext) == 0 {
		return "", mailerrors.ErrMissingCredentials
	}
	plaintext := fernet.VerifyAndDecrypt(ciphertext, noExpiry, c.keys)
	if plaintext == nil {
		return "", errors.Wrap(mailerrors.ErrCredential, "token rejected by every configured key")
	}
	return string(plaintext), nil
}
