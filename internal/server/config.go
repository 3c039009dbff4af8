package server

import (
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/ZYJ3898/robot-control-app/internal/link"
)

// Config holds all dashboard configuration.
type Config struct {
	mu sync.RWMutex

	// Robot connection
	Robot RobotConfig `yaml:"robot" json:"robot"`

	// Server
	Server ServerConfig `yaml:"server" json:"server"`

	path string // file path for save/load
}

type RobotConfig struct {
	Host        string `yaml:"host" json:"host"`
	Port        int    `yaml:"port" json:"port"`
	Transport   string `yaml:"transport" json:"transport"`    // "tcp" or "serial"
	SerialPort  string `yaml:"serial_port" json:"serialPort"` // e.g. /dev/ttyUSB0
	SerialBaud  int    `yaml:"serial_baud" json:"serialBaud"`
	AutoConnect bool   `yaml:"auto_connect" json:"autoConnect"` // dial at startup
}

type ServerConfig struct {
	ListenAddr string `yaml:"listen_addr" json:"listenAddr"`
}

// Dialer builds the link dialer for the configured transport. A non-empty
// host or non-zero port overrides the configured TCP target; the serial
// transport ignores both.
func (r RobotConfig) Dialer(host string, port int) link.Dialer {
	if r.Transport == "serial" {
		return link.SerialDialer{Path: r.SerialPort, Baud: r.SerialBaud}
	}
	if host == "" {
		host = r.Host
	}
	if port == 0 {
		port = r.Port
	}
	return link.TCPDialer{Host: host, Port: port}
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Robot: RobotConfig{
			Host:        "192.168.0.12",
			Port:        12345,
			Transport:   "tcp",
			SerialPort:  "/dev/ttyUSB0",
			SerialBaud:  115200,
			AutoConnect: false,
		},
		Server: ServerConfig{
			ListenAddr: ":8080",
		},
	}
}

// LoadConfig reads config from a YAML file, then applies .env and
// environment variable overrides. Falls back to defaults if YAML not found.
func LoadConfig(path string) *Config {
	cfg := DefaultConfig()
	cfg.path = path

	data, err := os.ReadFile(path)
	if err != nil {
		log.Printf("[config] no config at %s, using defaults", path)
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		log.Printf("[config] error parsing %s: %v, using defaults", path, err)
		cfg = DefaultConfig()
		cfg.path = path
	} else {
		log.Printf("[config] loaded from %s", path)
	}

	// Load .env file from the same directory as the config, or from CWD
	envPaths := []string{
		filepath.Join(filepath.Dir(path), ".env"),
		".env",
	}
	for _, ep := range envPaths {
		loadEnvFile(ep)
	}

	cfg.applyEnvOverrides()
	return cfg
}

// loadEnvFile reads a simple KEY=VALUE .env file and sets os env vars.
func loadEnvFile(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}
	log.Printf("[config] loading .env from %s", path)
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		val := strings.TrimSpace(parts[1])
		val = strings.Trim(val, `"'`)
		// Real env takes precedence
		if os.Getenv(key) == "" {
			os.Setenv(key, val)
		}
	}
}

// applyEnvOverrides reads environment variables and overrides config values.
// Supported: ROBOT_HOST, ROBOT_PORT, ROBOT_TRANSPORT, ROBOT_SERIAL_PORT,
// ROBOT_SERIAL_BAUD, ROBOT_AUTO_CONNECT, LISTEN_ADDR
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("ROBOT_HOST"); v != "" {
		c.Robot.Host = v
	}
	if v := os.Getenv("ROBOT_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Robot.Port = n
		}
	}
	if v := os.Getenv("ROBOT_TRANSPORT"); v != "" {
		c.Robot.Transport = v
	}
	if v := os.Getenv("ROBOT_SERIAL_PORT"); v != "" {
		c.Robot.SerialPort = v
	}
	if v := os.Getenv("ROBOT_SERIAL_BAUD"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Robot.SerialBaud = n
		}
	}
	if v := os.Getenv("ROBOT_AUTO_CONNECT"); v != "" {
		c.Robot.AutoConnect = v == "1" || v == "true" || v == "yes"
	}
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		c.Server.ListenAddr = v
	}
}

// Save writes the config to its YAML file.
func (c *Config) Save() error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	path := c.path
	if path == "" {
		path = "/etc/robotctl/config.yaml"
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// ToJSON serializes config for the API.
func (c *Config) ToJSON() ([]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return json.Marshal(c)
}
