package config

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type HTTPServer struct {
	Addr string `yaml:"address" env:"HTTP_ADDRESS" env-default:":8080"`
}

type Database struct {
	Host            string        `yaml:"PG_HOST" env:"PG_HOST" env-default:"localhost"`
	Port            string        `yaml:"PG_PORT" env:"PG_PORT" env-default:"5432"`
	User            string        `yaml:"PG_USER" env:"PG_USER" env-required:"true"`
	Password        string        `yaml:"PG_PASSWORD" env:"PG_PASSWORD" env-required:"true"`
	Name            string        `yaml:"PG_DBNAME" env:"PG_DBNAME" env-required:"true"`
	SSLMode         string        `yaml:"PG_SSLMODE" env:"PG_SSLMODE" env-default:"require"`
	MaxOpenConns    int           `yaml:"PG_MAX_OPEN_CONNS" env:"PG_MAX_OPEN_CONNS" env-default:"25"`
	MaxIdleConns    int           `yaml:"PG_MAX_IDLE_CONNS" env:"PG_MAX_IDLE_CONNS" env-default:"5"`
	ConnMaxLifetime time.Duration `yaml:"PG_CONN_MAX_LIFETIME" env:"PG_CONN_MAX_LIFETIME" env-default:"30m"`
	MigrationsPath  string        `yaml:"PG_MIGRATIONS_PATH" env:"PG_MIGRATIONS_PATH" env-default:"migrations"`
}

type RedisConnect struct {
	Host     string `yaml:"REDIS_HOST" env:"REDIS_HOST" env-default:"localhost"`
	Port     string `yaml:"REDIS_PORT" env:"REDIS_PORT" env-default:"6379"`
	Username string `yaml:"REDIS_USER" env:"REDIS_USER" env-default:""`
	Password string `yaml:"REDIS_PASSWORD" env:"REDIS_PASSWORD" env-default:""`
	DB       int    `yaml:"REDIS_DB" env:"REDIS_DB" env-default:"0"`
}

type RateConfig struct {
	MaxAttempts int64         `yaml:"MAX_ATTEMPTS" env:"MAX_ATTEMPTS" env-default:"5"`
	WindowSize  time.Duration `yaml:"WINDOW_SIZE" env:"WINDOW_SIZE" env-default:"15s"`
}

type Stripe struct {
	SecretKey  string `yaml:"STRIPE_SECRET_KEY" env:"STRIPE_SECRET_KEY" env-default:""`
	SuccessURL string `yaml:"STRIPE_SUCCESS_URL" env:"STRIPE_SUCCESS_URL" env-default:"http://localhost:3000/checkout/success"`
	CancelURL  string `yaml:"STRIPE_CANCEL_URL" env:"STRIPE_CANCEL_URL" env-default:"http://localhost:3000/checkout/cancel"`
	Currency   string `yaml:"STRIPE_CURRENCY" env:"STRIPE_CURRENCY" env-default:"eur"`
}

type PayPal struct {
	ClientID     string `yaml:"PAYPAL_CLIENT_ID" env:"PAYPAL_CLIENT_ID" env-default:""`
	ClientSecret string `yaml:"PAYPAL_CLIENT_SECRET" env:"PAYPAL_CLIENT_SECRET" env-default:""`
	APIBase      string `yaml:"PAYPAL_API_BASE" env:"PAYPAL_API_BASE" env-default:"https://api-m.sandbox.paypal.com"`
	ReturnURL    string `yaml:"PAYPAL_RETURN_URL" env:"PAYPAL_RETURN_URL" env-default:"http://localhost:3000/checkout/paypal/return"`
	CancelURL    string `yaml:"PAYPAL_CANCEL_URL" env:"PAYPAL_CANCEL_URL" env-default:"http://localhost:3000/checkout/paypal/cancel"`
	Currency     string `yaml:"PAYPAL_CURRENCY" env:"PAYPAL_CURRENCY" env-default:"EUR"`
}

type SendGrid struct {
	APIKey    string `yaml:"SENDGRID_API_KEY" env:"SENDGRID_API_KEY" env-default:""`
	FromEmail string `yaml:"SENDGRID_FROM_EMAIL" env:"SENDGRID_FROM_EMAIL" env-default:"orders@trinity-shop.dev"`
	FromName  string `yaml:"SENDGRID_FROM_NAME" env:"SENDGRID_FROM_NAME" env-default:"Trinity Shop"`
}

type Security struct {
	JWTKey string `yaml:"JWT_KEY" env:"JWT_KEY" env-required:"true"`
}

type Config struct {
	Env          string `yaml:"env" env:"ENV" env-default:"production"`
	HTTPServer   `yaml:"http_server"`
	Database     Database     `yaml:"database"`
	RedisConnect RedisConnect `yaml:"redis"`
	RateConfig   RateConfig   `yaml:"rateConfig"`
	Stripe       Stripe       `yaml:"stripe"`
	PayPal       PayPal       `yaml:"paypal"`
	SendGrid     SendGrid     `yaml:"sendgrid"`
	Security     Security     `yaml:"security"`
}

func MustLoad() *Config {
	configPath := os.Getenv("CONFIG_PATH")

	if configPath == "" {
		flags := flag.String("config", "", "path to the config file")

		flag.Parse()

		configPath = *flags

		if configPath == "" {
			log.Fatal("Config path is not set")
		}
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		log.Fatalf("config file does not exist: %s", configPath)
	}

	var cfg Config

	err := cleanenv.ReadConfig(configPath, &cfg)
	if err != nil {
		log.Fatalf("can not read config file: %s", err.Error())
	}

	return &cfg
}

func (d *Database) GetDSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode)
}

func (r *RedisConnect) GetDSN() string {
	return fmt.Sprintf("redis://%s:%s@%s:%s/%d",
		r.Username, r.Password, r.Host, r.Port, r.DB)
}
