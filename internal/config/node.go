package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// DefaultConfigPath is the path to the canonical node defaults file.
const DefaultConfigPath = "config/node.defaults.json"

// APIKeyEnv overrides api_key when set, so the secret can stay out of the
// config file.
const APIKeyEnv = "AIRQUALITY_API_KEY"

// NodeConfig is the node's configuration file. Every field is optional;
// the Get* methods supply defaults for anything omitted. Durations are
// strings such as "250ms" or "5m".
type NodeConfig struct {
	// Sensor
	SerialPort     *string `json:"serial_port,omitempty"`
	BaudRate       *int    `json:"baud_rate,omitempty"`
	ReadTimeout    *string `json:"read_timeout,omitempty"`
	WarmupReads    *int    `json:"warmup_reads,omitempty"`
	WarmupInterval *string `json:"warmup_interval,omitempty"`
	RetryDelay     *string `json:"retry_delay,omitempty"`
	DutyCycle      *string `json:"duty_cycle,omitempty"`

	// HTTP
	Listen         *string `json:"listen,omitempty"`
	MaxConnections *int    `json:"max_connections,omitempty"`
	APIKey         *string `json:"api_key,omitempty"`
	ResetDelay     *string `json:"reset_delay,omitempty"`
	Timezone       *string `json:"timezone,omitempty"`

	// Log file
	LogFile       *string `json:"log_file,omitempty"`
	LogMaxSizeMB  *int    `json:"log_max_size_mb,omitempty"`
	LogMaxBackups *int    `json:"log_max_backups,omitempty"`

	// Upload queue and history
	QueueDir         *string `json:"queue_dir,omitempty"`
	QueueMaxFiles    *int    `json:"queue_max_files,omitempty"`
	DBPath           *string `json:"db_path,omitempty"`
	HistoryRetention *string `json:"history_retention,omitempty"`

	// MQTT uplink; disabled while mqtt_broker is empty
	MQTTBroker     *string `json:"mqtt_broker,omitempty"`
	MQTTTopic      *string `json:"mqtt_topic,omitempty"`
	MQTTClientID   *string `json:"mqtt_client_id,omitempty"`
	UplinkInterval *string `json:"uplink_interval,omitempty"`
}

// EmptyNodeConfig returns a NodeConfig with every field unset.
func EmptyNodeConfig() *NodeConfig {
	return &NodeConfig{}
}

// LoadNodeConfig loads a NodeConfig from a JSON file.
// The file is validated to ensure it has a .json extension and is under the max file size.
func LoadNodeConfig(path string) (*NodeConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyNodeConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks that the configuration values are valid.
func (c *NodeConfig) Validate() error {
	durations := []struct {
		name string
		v    *string
	}{
		{"read_timeout", c.ReadTimeout},
		{"warmup_interval", c.WarmupInterval},
		{"retry_delay", c.RetryDelay},
		{"duty_cycle", c.DutyCycle},
		{"reset_delay", c.ResetDelay},
		{"history_retention", c.HistoryRetention},
		{"uplink_interval", c.UplinkInterval},
	}
	for _, d := range durations {
		if d.v == nil || *d.v == "" {
			continue
		}
		v, err := time.ParseDuration(*d.v)
		if err != nil {
			return fmt.Errorf("invalid %s '%s': %w", d.name, *d.v, err)
		}
		if v < 0 {
			return fmt.Errorf("%s must be non-negative, got %s", d.name, v)
		}
	}

	if c.DutyCycle != nil && *c.DutyCycle != "" && c.GetDutyCycle() == 0 {
		return fmt.Errorf("duty_cycle must be positive")
	}
	if c.UplinkInterval != nil && *c.UplinkInterval != "" && c.GetUplinkInterval() == 0 {
		return fmt.Errorf("uplink_interval must be positive")
	}

	ints := []struct {
		name string
		v    *int
		min  int
	}{
		{"baud_rate", c.BaudRate, 1},
		{"warmup_reads", c.WarmupReads, 0},
		{"max_connections", c.MaxConnections, 1},
		{"log_max_size_mb", c.LogMaxSizeMB, 1},
		{"log_max_backups", c.LogMaxBackups, 0},
		{"queue_max_files", c.QueueMaxFiles, 1},
	}
	for _, i := range ints {
		if i.v != nil && *i.v < i.min {
			return fmt.Errorf("%s must be at least %d, got %d", i.name, i.min, *i.v)
		}
	}

	if c.Timezone != nil && *c.Timezone != "" {
		if _, err := time.LoadLocation(*c.Timezone); err != nil {
			return fmt.Errorf("invalid timezone %q: %w", *c.Timezone, err)
		}
	}

	if c.MQTTBroker != nil && *c.MQTTBroker != "" {
		b := *c.MQTTBroker
		if !strings.Contains(b, "://") {
			return fmt.Errorf("mqtt_broker must be a URL such as tcp://host:1883, got %q", b)
		}
	}
	return nil
}

func getString(p *string, def string) string {
	if p == nil || *p == "" {
		return def
	}
	return *p
}

func getInt(p *int, def int) int {
	if p == nil {
		return def
	}
	return *p
}

func getDuration(p *string, def time.Duration) time.Duration {
	if p == nil || *p == "" {
		return def
	}
	d, err := time.ParseDuration(*p)
	if err != nil {
		return def // default on parse error
	}
	return d
}

func (c *NodeConfig) GetSerialPort() string   { return getString(c.SerialPort, "/dev/serial0") }
func (c *NodeConfig) GetBaudRate() int        { return getInt(c.BaudRate, 9600) }
func (c *NodeConfig) GetWarmupReads() int     { return getInt(c.WarmupReads, 30) }
func (c *NodeConfig) GetListen() string       { return getString(c.Listen, ":8080") }
func (c *NodeConfig) GetMaxConnections() int  { return getInt(c.MaxConnections, 8) }
func (c *NodeConfig) GetLogFile() string      { return getString(c.LogFile, "node.log") }
func (c *NodeConfig) GetLogMaxSizeMB() int    { return getInt(c.LogMaxSizeMB, 1) }
func (c *NodeConfig) GetLogMaxBackups() int   { return getInt(c.LogMaxBackups, 2) }
func (c *NodeConfig) GetQueueDir() string     { return getString(c.QueueDir, "queue") }
func (c *NodeConfig) GetQueueMaxFiles() int   { return getInt(c.QueueMaxFiles, 500) }
func (c *NodeConfig) GetDBPath() string       { return getString(c.DBPath, "airquality.db") }
func (c *NodeConfig) GetMQTTBroker() string   { return getString(c.MQTTBroker, "") }
func (c *NodeConfig) GetMQTTTopic() string    { return getString(c.MQTTTopic, "airquality/samples") }
func (c *NodeConfig) GetMQTTClientID() string { return getString(c.MQTTClientID, "pmsensor") }
func (c *NodeConfig) GetTimezone() string     { return getString(c.Timezone, "UTC") }

// Location returns the zone pages render times in, falling back to UTC.
func (c *NodeConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.GetTimezone())
	if err != nil {
		return time.UTC
	}
	return loc
}

func (c *NodeConfig) GetReadTimeout() time.Duration {
	return getDuration(c.ReadTimeout, 250*time.Millisecond)
}

func (c *NodeConfig) GetWarmupInterval() time.Duration {
	return getDuration(c.WarmupInterval, time.Second)
}

func (c *NodeConfig) GetRetryDelay() time.Duration {
	return getDuration(c.RetryDelay, time.Second)
}

func (c *NodeConfig) GetDutyCycle() time.Duration {
	return getDuration(c.DutyCycle, 300*time.Second)
}

func (c *NodeConfig) GetResetDelay() time.Duration {
	return getDuration(c.ResetDelay, 2*time.Second)
}

// GetHistoryRetention returns how long samples are kept in the history
// database. Zero keeps them forever.
func (c *NodeConfig) GetHistoryRetention() time.Duration {
	return getDuration(c.HistoryRetention, 30*24*time.Hour)
}

func (c *NodeConfig) GetUplinkInterval() time.Duration {
	return getDuration(c.UplinkInterval, time.Minute)
}

// GetAPIKey returns the admin secret. The environment variable wins over
// the file. An empty key authorises nothing.
func (c *NodeConfig) GetAPIKey() string {
	if v := os.Getenv(APIKeyEnv); v != "" {
		return v
	}
	return getString(c.APIKey, "")
}
