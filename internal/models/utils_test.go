package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONMap_ScanString(t *testing.T) {
	var m JSONMap
	require.NoError(t, m.Scan(`{"subject":["hello"]}`))
	assert.Equal(t, []interface{}{"hello"}, m["subject"])
}

func TestJSONMap_ScanNil(t *testing.T) {
	var m JSONMap
	require.NoError(t, m.Scan(nil))
	assert.NotNil(t, m)
	assert.Empty(t, m)
}

func TestHeadersToJSONMap_LowercasesKeys(t *testing.T) {
	m := HeadersToJSONMap(map[string][]string{"X-Mailer": {"mutt"}})
	assert.Equal(t, []string{"mutt"}, m["x-mailer"])
}

func TestEmailAccount_LoginUser(t *testing.T) {
	account := EmailAccount{EmailAddress: "jo@example.com"}
	assert.Equal(t, "jo@example.com", account.LoginUser())
	account.ImapUsername = "jo"
	assert.Equal(t, "jo", account.LoginUser())
}

func TestEmailAccount_HasServerConfig(t *testing.T) {
	account := EmailAccount{EmailAddress: "jo@example.com", ImapServer: "imap.example.com"}
	assert.False(t, account.HasServerConfig())
	account.ImapPort = 993
	assert.True(t, account.HasServerConfig())
}
