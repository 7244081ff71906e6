package logging

import (
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edtechhub/kerkoapp/internal/config"
)

func TestConfigure(t *testing.T) {
	Init()
	defer Init()

	require.NoError(t, Configure(config.LoggingConfig{Handler: "default", Level: "warning", Format: "json"}))
	assert.Equal(t, log.WarnLevel, log.GetLevel())
	assert.IsType(t, &log.JSONFormatter{}, log.StandardLogger().Formatter)

	assert.Error(t, Configure(config.LoggingConfig{Handler: "default", Level: "loud", Format: "text"}))
}

func TestSyslogTarget(t *testing.T) {
	network, address := syslogTarget("/dev/log")
	assert.Equal(t, "unixgram", network)
	assert.Equal(t, "/dev/log", address)

	network, address = syslogTarget("logs.example.org")
	assert.Equal(t, "udp", network)
	assert.Equal(t, "logs.example.org:514", address)

	_, address = syslogTarget("10.0.0.1:1514")
	assert.Equal(t, "10.0.0.1:1514", address)
}
