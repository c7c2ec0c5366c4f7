package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	DB      *Postgres `yaml:"database"`
	RMQ     *RabbitMQ `yaml:"rabbitmq"`
	HTTP    *HTTP     `yaml:"http"`
	Webhook *Webhook  `yaml:"webhook"`
	Kitchen *Kitchen  `yaml:"kitchen"`
	Panel   *Panel    `yaml:"panel"`
}

type Postgres struct {
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

type RabbitMQ struct {
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	VHost    string `yaml:"vhost"`
}

type HTTP struct {
	Port int `yaml:"port"`
}

// Webhook holds the optional "order ready" notification endpoint. An empty URL
// disables dispatch entirely.
type Webhook struct {
	URL string `yaml:"url"`
}

type Kitchen struct {
	RestaurantID    int64  `yaml:"restaurant_id"`
	PollIntervalSec int    `yaml:"poll_interval_sec"`
	BaseURL         string `yaml:"base_url"`
}

type Panel struct {
	BaseURL string `yaml:"base_url"`
}

func LoadConfig(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// DSN builds the postgres connection string.
func (p *Postgres) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=disable",
		p.User, p.Password, p.Host, p.Port, p.Database,
	)
}

// URL builds the amqp connection string.
func (r *RabbitMQ) URL() string {
	vhost := r.VHost
	if vhost == "" {
		vhost = "/"
	}
	return fmt.Sprintf("amqp://%s:%s@%s:%s%s", r.User, r.Password, r.Host, r.Port, vhost)
}
