package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/logger"
)

func TestGormLogLevel(t *testing.T) {
	assert.Equal(t, logger.Silent, gormLogLevel("silent"))
	assert.Equal(t, logger.Error, gormLogLevel("ERROR"))
	assert.Equal(t, logger.Info, gormLogLevel("debug"))
	assert.Equal(t, logger.Warn, gormLogLevel(""))
	assert.Equal(t, logger.Warn, gormLogLevel("whatever"))
}

func TestValidateConfig(t *testing.T) {
	require.Error(t, validateConfig(nil))

	cfg := &DatabaseConfig{Host: "localhost", Port: "5432", User: "u", Password: "p"}
	err := validateConfig(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "name")

	cfg.DBName = "mailingest"
	require.NoError(t, validateConfig(cfg))
	assert.Equal(t, "require", cfg.SSLMode)
}

func TestNewConnection_InvalidPort(t *testing.T) {
	_, err := NewConnection(&DatabaseConfig{
		Host: "localhost", Port: "abc", User: "u", Password: "p", DBName: "d", SSLMode: "disable",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid port")
}
