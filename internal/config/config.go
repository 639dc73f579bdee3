// Package config provides runtime configuration management.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/advisorkit/advisor-proxy-go/internal/utils"
)

// EngineConfig identifies the reasoning engine the proxy fronts
type EngineConfig struct {
	ProjectID string `json:"projectId"`
	Location  string `json:"location"`
	EngineID  string `json:"engineId"`
}

// Config represents the runtime configuration
type Config struct {
	mu sync.RWMutex

	// API access
	APIKey string `json:"apiKey"`

	// Logging and debugging
	Debug bool `json:"debug"`

	// Reasoning engine coordinates
	Engine EngineConfig `json:"engine"`

	// Service account credential bundle (raw JSON). Loaded from the
	// environment; never written back to disk.
	ServiceAccountJSON string `json:"-"`

	// Conversation history store (empty path disables persistence)
	HistoryDBPath string `json:"historyDBPath"`

	// Redis configuration (usage statistics)
	RedisAddr     string `json:"redisAddr"`
	RedisPassword string `json:"redisPassword"`
	RedisDB       int    `json:"redisDB"`

	// Server configuration
	Port int    `json:"port"`
	Host string `json:"host"`
}

// DefaultConfig returns a new Config with default values
func DefaultConfig() *Config {
	return &Config{
		APIKey: "",
		Debug:  false,
		Engine: EngineConfig{
			Location: "us-central1",
		},
		HistoryDBPath: "",
		RedisAddr:     "localhost:6379",
		RedisPassword: "",
		RedisDB:       0,
		Port:          DefaultPort,
		Host:          "0.0.0.0",
	}
}

// Config paths
var (
	configDir  string
	configFile string
)

func init() {
	home := utils.GetHomeDir()
	configDir = filepath.Join(home, ".config", "advisor-proxy")
	configFile = filepath.Join(configDir, "config.json")
}

// Load loads configuration from file and environment
func (c *Config) Load() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := utils.EnsureDir(configDir); err != nil {
		utils.Warn("Failed to create config directory: %v", err)
	}

	if utils.FileExists(configFile) {
		if err := c.loadFromFile(configFile); err != nil {
			utils.Warn("Failed to load config from %s: %v", configFile, err)
		}
	} else {
		localConfig := filepath.Join(".", "config.json")
		if utils.FileExists(localConfig) {
			if err := c.loadFromFile(localConfig); err != nil {
				utils.Warn("Failed to load local config: %v", err)
			}
		}
	}

	c.loadFromEnv()

	utils.SetDebug(c.Debug)

	return nil
}

// loadFromFile loads config from a JSON file
func (c *Config) loadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	tempConfig := DefaultConfig()
	if err := json.Unmarshal(data, tempConfig); err != nil {
		return err
	}

	c.APIKey = tempConfig.APIKey
	c.Debug = tempConfig.Debug
	c.Engine = tempConfig.Engine
	c.HistoryDBPath = tempConfig.HistoryDBPath
	c.RedisAddr = tempConfig.RedisAddr
	c.RedisPassword = tempConfig.RedisPassword
	c.RedisDB = tempConfig.RedisDB
	c.Port = tempConfig.Port
	c.Host = tempConfig.Host

	return nil
}

// loadFromEnv loads config from environment variables
func (c *Config) loadFromEnv() {
	if v := os.Getenv("API_KEY"); v != "" {
		c.APIKey = v
	}
	if os.Getenv("DEBUG") == "true" {
		c.Debug = true
	}
	if v := os.Getenv(EnvServiceAccountJSON); v != "" {
		c.ServiceAccountJSON = v
	}
	if v := os.Getenv("VERTEX_PROJECT_ID"); v != "" {
		c.Engine.ProjectID = v
	}
	if v := os.Getenv("VERTEX_LOCATION"); v != "" {
		c.Engine.Location = v
	}
	if v := os.Getenv("VERTEX_REASONING_ENGINE_ID"); v != "" {
		c.Engine.EngineID = v
	}
	if v := os.Getenv("HISTORY_DB_PATH"); v != "" {
		c.HistoryDBPath = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.RedisAddr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.RedisPassword = v
	}
	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil && port > 0 {
			c.Port = port
		}
	}
	if v := os.Getenv("HOST"); v != "" {
		c.Host = v
	}
}

// GetPublic returns a copy of the config with sensitive fields redacted
func (c *Config) GetPublic() map[string]interface{} {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return map[string]interface{}{
		"apiKey":         redact(c.APIKey),
		"debug":          c.Debug,
		"engine":         c.Engine,
		"serviceAccount": redact(c.ServiceAccountJSON),
		"historyDBPath":  c.HistoryDBPath,
		"redisAddr":      c.RedisAddr,
		"redisPassword":  redact(c.RedisPassword),
		"redisDB":        c.RedisDB,
		"port":           c.Port,
		"host":           c.Host,
	}
}

// IsDebug returns whether debug mode is enabled
func (c *Config) IsDebug() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Debug
}

// redact returns "********" if the string is non-empty, otherwise empty string
func redact(s string) string {
	if s == "" {
		return ""
	}
	return "********"
}
