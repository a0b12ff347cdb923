package source

import (
	"errors"
	"fmt"
	"time"

	"github.com/ghalamif/sensorlog/internal/ports"
)

const (
	KindSerial = "serial"
	KindMQTT   = "mqtt"
	KindKafka  = "kafka"
	KindStdin  = "stdin"
	KindFile   = "file"
)

// Config selects and configures the transport behind the line source.
type Config struct {
	Kind         string             `yaml:"kind"`
	ReadTimeout  time.Duration      `yaml:"read_timeout"`
	InvalidUTF8  ports.DecodePolicy `yaml:"invalid_utf8"`
	MaxLineBytes int                `yaml:"max_line_bytes"`

	Serial SerialConfig `yaml:"serial"`
	MQTT   MQTTConfig   `yaml:"mqtt"`
	Kafka  KafkaConfig  `yaml:"kafka"`
	File   FileConfig   `yaml:"file"`
}

type SerialConfig struct {
	Port string `yaml:"port"`
	Baud int    `yaml:"baud"`
}

type MQTTConfig struct {
	Broker         string        `yaml:"broker"`
	ClientID       string        `yaml:"client_id"`
	Topic          string        `yaml:"topic"`
	QoS            byte          `yaml:"qos"`
	Username       string        `yaml:"username"`
	Password       string        `yaml:"password"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
}

type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
	GroupID string   `yaml:"group_id"`
}

type FileConfig struct {
	Path string `yaml:"path"`
}

func (c *Config) ApplyDefaults() {
	if c.Kind == "" {
		c.Kind = KindSerial
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = time.Second
	}
	if c.InvalidUTF8 == "" {
		c.InvalidUTF8 = ports.DecodeDrop
	}
	if c.MaxLineBytes <= 0 {
		c.MaxLineBytes = 4096
	}
	if c.Serial.Port == "" {
		c.Serial.Port = "/dev/ttyUSB0"
	}
	if c.Serial.Baud == 0 {
		c.Serial.Baud = 115200
	}
	if c.MQTT.ClientID == "" {
		c.MQTT.ClientID = "sensorlog"
	}
	if c.MQTT.ConnectTimeout <= 0 {
		c.MQTT.ConnectTimeout = 10 * time.Second
	}
	if c.Kafka.GroupID == "" {
		c.Kafka.GroupID = "sensorlog"
	}
}

func (c *Config) Validate() error {
	switch c.InvalidUTF8 {
	case ports.DecodeDrop, ports.DecodeStrip:
	default:
		return fmt.Errorf("invalid_utf8 must be drop or strip, got %q", c.InvalidUTF8)
	}

	switch c.Kind {
	case KindSerial:
		if c.Serial.Port == "" {
			return errors.New("serial.port is required")
		}
		if c.Serial.Baud <= 0 {
			return errors.New("serial.baud must be > 0")
		}
	case KindMQTT:
		if c.MQTT.Broker == "" {
			return errors.New("mqtt.broker is required")
		}
		if c.MQTT.Topic == "" {
			return errors.New("mqtt.topic is required")
		}
		if c.MQTT.QoS > 2 {
			return fmt.Errorf("mqtt.qos must be 0, 1 or 2, got %d", c.MQTT.QoS)
		}
	case KindKafka:
		if len(c.Kafka.Brokers) == 0 || c.Kafka.Brokers[0] == "" {
			return errors.New("kafka.brokers must not be empty")
		}
		if c.Kafka.Topic == "" {
			return errors.New("kafka.topic is required")
		}
	case KindFile:
		if c.File.Path == "" {
			return errors.New("file.path is required")
		}
	case KindStdin:
	default:
		return fmt.Errorf("unknown source kind %q", c.Kind)
	}
	return nil
}
