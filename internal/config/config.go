package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	GNSS   GNSSConfig   `yaml:"gnss"`
	Output OutputConfig `yaml:"output"`
	UDP    UDPConfig    `yaml:"udp"`
	MQTT   MQTTConfig   `yaml:"mqtt"`
	Web    WebConfig    `yaml:"web"`
	Power  PowerConfig  `yaml:"power"`
	Record RecordConfig `yaml:"record"`
	Replay ReplayConfig `yaml:"replay"`
}

type GNSSConfig struct {
	Device  string        `yaml:"device"`
	Baud    int           `yaml:"baud"`
	NMEA    bool          `yaml:"nmea"`
	NoInit  bool          `yaml:"no_init"`
	InitGap time.Duration `yaml:"init_gap"`
}

type OutputConfig struct {
	RawDump bool `yaml:"raw_dump"`
}

type UDPConfig struct {
	Dest string `yaml:"dest"`
}

type MQTTConfig struct {
	Enable   bool   `yaml:"enable"`
	Broker   string `yaml:"broker"`
	ClientID string `yaml:"client_id"`
	Topic    string `yaml:"topic"`
}

type WebConfig struct {
	Listen string `yaml:"listen"`
}

type PowerConfig struct {
	Pin int `yaml:"pin"`
}

type RecordConfig struct {
	Enable bool   `yaml:"enable"`
	Path   string `yaml:"path"`
}

type ReplayConfig struct {
	Enable bool    `yaml:"enable"`
	Path   string  `yaml:"path"`
	Speed  float64 `yaml:"speed"`
	Loop   bool    `yaml:"loop"`
}

// Default returns the configuration used when no config file is given.
// The device still has to come from somewhere (file or -device flag).
func Default() Config {
	var cfg Config
	applyDefaults(&cfg)
	return cfg
}

func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return Config{}, err
	}

	applyDefaults(&cfg)
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.GNSS.InitGap <= 0 {
		cfg.GNSS.InitGap = 200 * time.Millisecond
	}

	if cfg.MQTT.Broker == "" {
		cfg.MQTT.Broker = "tcp://localhost:1883"
	}
	if cfg.MQTT.ClientID == "" {
		cfg.MQTT.ClientID = "tigpsd"
	}
	if cfg.MQTT.Topic == "" {
		cfg.MQTT.Topic = "tigpsd/fix"
	}

	if cfg.Replay.Speed == 0 {
		cfg.Replay.Speed = 1
	}
}

func Validate(cfg Config) error {
	if cfg.GNSS.Device == "" && !cfg.Replay.Enable {
		return fmt.Errorf("gnss.device is required")
	}
	if cfg.GNSS.Baud < 0 {
		return fmt.Errorf("gnss.baud must be >= 0")
	}

	if cfg.Record.Enable && cfg.Record.Path == "" {
		return fmt.Errorf("record.path is required when record.enable is true")
	}

	if cfg.Replay.Enable {
		if cfg.Replay.Path == "" {
			return fmt.Errorf("replay.path is required when replay.enable is true")
		}
		if cfg.Replay.Speed < 0 {
			return fmt.Errorf("replay.speed must be > 0")
		}
	}

	if cfg.Record.Enable && cfg.Replay.Enable {
		return fmt.Errorf("record and replay cannot both be enabled")
	}

	return nil
}
