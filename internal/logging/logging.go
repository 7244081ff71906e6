package logging

import (
	"fmt"
	"io"
	"log/syslog"
	"os"
	"strings"

	log "github.com/sirupsen/logrus"
	lsyslog "github.com/sirupsen/logrus/hooks/syslog"

	"github.com/edtechhub/kerkoapp/internal/config"
)

// Init sends log output to stderr at info level until Configure runs.
func Init() {
	log.SetOutput(os.Stderr)
	log.SetLevel(log.InfoLevel)
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
}

// Configure applies the logging section of the configuration to the
// standard logger.
func Configure(cfg config.LoggingConfig) error {
	level, err := log.ParseLevel(cfg.Level)
	if err != nil {
		return fmt.Errorf("logging level: %w", err)
	}

	log.SetLevel(level)

	switch cfg.Format {
	case "json":
		log.SetFormatter(&log.JSONFormatter{})
	default:
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}

	if cfg.Handler != "syslog" {
		return nil
	}

	network, address := syslogTarget(cfg.Address)

	hook, err := lsyslog.NewSyslogHook(network, address, syslog.LOG_INFO|syslog.LOG_USER, "kerkoapp")
	if err != nil {
		return fmt.Errorf("syslog %s: %w", cfg.Address, err)
	}

	log.AddHook(hook)

	return nil
}

// syslogTarget maps an address to dial arguments: socket paths are dialed
// as unix datagram sockets, anything else as host:port over udp.
func syslogTarget(address string) (string, string) {
	if strings.HasPrefix(address, "/") {
		return "unixgram", address
	}

	if !strings.Contains(address, ":") {
		address += ":514"
	}

	return "udp", address
}

// Writer returns a writer logging each line at the given level, for
// libraries that want an io.Writer.
func Writer(level log.Level) io.Writer {
	return log.StandardLogger().WriterLevel(level)
}
