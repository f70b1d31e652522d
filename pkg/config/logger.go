package config

import (
	"os"

	log "github.com/sirupsen/logrus"
)

// InitLogger applies LOG_FORMAT (json|text) and LOG_LEVEL.
func InitLogger() {
	if os.Getenv("LOG_FORMAT") == "json" {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}

	level, err := log.ParseLevel(Env("LOG_LEVEL", "info"))
	if err != nil {
		log.Warnf("Unknown LOG_LEVEL %q, using info", os.Getenv("LOG_LEVEL"))
		level = log.InfoLevel
	}
	log.SetLevel(level)
}
