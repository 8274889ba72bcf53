// Package config loads midici-gatewayd's runtime configuration from the
// environment, optionally seeded from a .env file.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Config holds every environment-derived setting midici-gatewayd needs.
type Config struct {
	// HTTPAddr is the debug HTTP listen address (e.g. ":8080").
	HTTPAddr string
	// MIDI1Addr is the PROXY-protocol-aware TCP listen address for MIDI
	// 1.0 byte-stream clients.
	MIDI1Addr string
	// MetricsAddr is the Prometheus /metrics listen address.
	MetricsAddr string

	PostgresDSN string
	MongoURI    string
	AMQPAddr    string
	AMQPQueue   string

	LokiURL      string
	LokiUsername string
	LokiPassword string

	LocalMUIDSeed uint32
}

// Load reads .env (if present) then the process environment, applying
// defaults for anything unset. A missing .env file is not an error.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil {
		logrus.WithError(err).Debug("config: no .env file found, using process environment")
	}

	cfg := Config{
		HTTPAddr:     getenvDefault("HTTP_ADDR", ":8080"),
		MIDI1Addr:    getenvDefault("MIDI1_ADDR", ":5568"),
		MetricsAddr:  getenvDefault("METRICS_ADDR", ":9216"),
		PostgresDSN:  os.Getenv("POSTGRES_DSN"),
		MongoURI:     os.Getenv("MONGODB_URI"),
		AMQPAddr:     os.Getenv("AMQP_ADDR"),
		AMQPQueue:    getenvDefault("AMQP_QUEUE", "midici.events"),
		LokiURL:      os.Getenv("LOKI_URL"),
		LokiUsername: os.Getenv("LOKI_USERNAME"),
		LokiPassword: os.Getenv("LOKI_PASSWORD"),
	}

	seed, err := strconv.ParseUint(getenvDefault("LOCAL_MUID_SEED", "1"), 10, 32)
	if err != nil {
		return cfg, fmt.Errorf("config: LOCAL_MUID_SEED: %w", err)
	}
	cfg.LocalMUIDSeed = uint32(seed)

	if cfg.PostgresDSN == "" {
		return cfg, fmt.Errorf("config: POSTGRES_DSN is required")
	}
	if cfg.MongoURI == "" {
		return cfg, fmt.Errorf("config: MONGODB_URI is required")
	}

	return cfg, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
