package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
)

type Config struct {
	ListenAddr  string
	LogLevel    string
	RedisNodes  []string
	PostgresDSN string
}

// Load assembles configuration from the positional listen address and
// environment variables.
func Load(args []string) *Config {
	addr := "0.0.0.0:8080"
	if len(args) > 1 && args[1] != "" {
		addr = args[1]
	}

	nodes := strings.Split(getEnv("REDIS_NODES", "localhost:7001,localhost:7002,localhost:7003"), ",")
	for i := range nodes {
		nodes[i] = strings.TrimSpace(nodes[i])
	}

	return &Config{
		ListenAddr:  addr,
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		RedisNodes:  nodes,
		PostgresDSN: postgresDSN(),
	}
}

// postgresDSN builds the connection string from the POSTGRES_* variables.
func postgresDSN() string {
	u := url.URL{
		Scheme: "postgres",
		User: url.UserPassword(
			getEnv("POSTGRES_USER", "postgres"),
			getEnv("POSTGRES_PASSWORD", "postgres"),
		),
		Host: fmt.Sprintf("%s:%s",
			getEnv("POSTGRES_HOST", "localhost"),
			getEnv("POSTGRES_PORT", "5432"),
		),
		Path: "/" + getEnv("POSTGRES_DB", "talkwire"),
	}
	return u.String()
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}
