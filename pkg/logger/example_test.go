package logger_test

import (
	"errors"

	"github.com/gdtech/hackathon/pkg/config"
	"github.com/gdtech/hackathon/pkg/logger"
)

// Example_withFields demonstrates structured logging with fields
func Example_withFields() {
	cfg := &config.Config{
		Env:       "production",
		LogLevel:  "info",
		LogFormat: "json",
	}

	log := logger.New(cfg).Component("ledger")

	log.WithFields(map[string]interface{}{
		"investor":   "alice",
		"project_id": 7,
		"amount":     60,
	}).Info("investment recorded")

	err := errors.New("bitable update failed")
	log.WithError(err).WithField("investor", "alice").Error("budget sync failed")
}
