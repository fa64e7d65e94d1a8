package config

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Redis    RedisConfig    `mapstructure:"redis"`
	MySQL    MySQLConfig    `mapstructure:"mysql"`
	Market   MarketConfig   `mapstructure:"market"`
	Leader   LeaderConfig   `mapstructure:"leader"`
	Instance InstanceConfig `mapstructure:"instance"`
}

type ServerConfig struct {
	Port int    `mapstructure:"port"`
	Host string `mapstructure:"host"`
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type MySQLConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// MarketConfig carries the marketplace fee schedule and the custody account.
// Fee amounts are strings in the smallest indivisible unit of value; they
// exceed uint64 range, hence decimal.
type MarketConfig struct {
	CustodyAccount   string `mapstructure:"custody_account"`
	MintFee          string `mapstructure:"mint_fee"`
	CreateAuctionFee string `mapstructure:"create_auction_fee"`
	EnrollmentFee    string `mapstructure:"enrollment_fee"`
}

type LeaderConfig struct {
	TTL time.Duration `mapstructure:"ttl"`
}

type InstanceConfig struct {
	ID string `mapstructure:"id"`
}

func Load() (*Config, error) {
	// Set default values
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("redis.address", "localhost:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("mysql.dsn", "market_user:market_pass@tcp(localhost:3306)/market_db?parseTime=true")
	viper.SetDefault("mysql.max_open_conns", 25)
	viper.SetDefault("mysql.max_idle_conns", 10)
	viper.SetDefault("mysql.conn_max_lifetime", 5*time.Minute)
	viper.SetDefault("market.custody_account", "market.custody")
	viper.SetDefault("market.mint_fee", "100000000000000000000000")
	viper.SetDefault("market.create_auction_fee", "1000000000000000000000000")
	viper.SetDefault("market.enrollment_fee", "100000000000000000000000")
	viper.SetDefault("leader.ttl", 30*time.Second)
	viper.SetDefault("instance.id", "")

	// Configuration file settings
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/nft-market/")

	// Environment variable support
	viper.AutomaticEnv()

	// Environment variable mappings
	viper.BindEnv("server.port", "SERVER_PORT")
	viper.BindEnv("server.host", "SERVER_HOST")
	viper.BindEnv("redis.address", "REDIS_ADDRESS")
	viper.BindEnv("redis.password", "REDIS_PASSWORD")
	viper.BindEnv("redis.db", "REDIS_DB")
	viper.BindEnv("mysql.dsn", "MYSQL_DSN")
	viper.BindEnv("mysql.max_open_conns", "MYSQL_MAX_OPEN_CONNS")
	viper.BindEnv("mysql.max_idle_conns", "MYSQL_MAX_IDLE_CONNS")
	viper.BindEnv("mysql.conn_max_lifetime", "MYSQL_CONN_MAX_LIFETIME")
	viper.BindEnv("market.custody_account", "MARKET_CUSTODY_ACCOUNT")
	viper.BindEnv("market.mint_fee", "MARKET_MINT_FEE")
	viper.BindEnv("market.create_auction_fee", "MARKET_CREATE_AUCTION_FEE")
	viper.BindEnv("market.enrollment_fee", "MARKET_ENROLLMENT_FEE")
	viper.BindEnv("leader.ttl", "LEADER_TTL")
	viper.BindEnv("instance.id", "INSTANCE_ID")

	// Read configuration file (optional - will use defaults/env vars if not found)
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		// Config file not found, continue with defaults and environment variables
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	if _, err := config.Market.Fees(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Fees parses the configured fee amounts. Parsing is validated once at load
// time so the rest of the service can treat the schedule as infallible.
func (m MarketConfig) Fees() (*FeeSchedule, error) {
	mint, err := decimal.NewFromString(m.MintFee)
	if err != nil {
		return nil, fmt.Errorf("invalid mint fee %q: %w", m.MintFee, err)
	}
	create, err := decimal.NewFromString(m.CreateAuctionFee)
	if err != nil {
		return nil, fmt.Errorf("invalid create auction fee %q: %w", m.CreateAuctionFee, err)
	}
	enroll, err := decimal.NewFromString(m.EnrollmentFee)
	if err != nil {
		return nil, fmt.Errorf("invalid enrollment fee %q: %w", m.EnrollmentFee, err)
	}
	return &FeeSchedule{Mint: mint, CreateAuction: create, Enrollment: enroll}, nil
}

// FeeSchedule is the fixed fee table callers must match exactly.
type FeeSchedule struct {
	Mint          decimal.Decimal
	CreateAuction decimal.Decimal
	Enrollment    decimal.Decimal
}

func (c *Config) GetConfigString() string {
	return fmt.Sprintf(
		"Server: %s:%d, Redis: %s, MySQL: %s, Custody: %s, Instance: %s",
		c.Server.Host,
		c.Server.Port,
		c.Redis.Address,
		c.MySQL.DSN,
		c.Market.CustodyAccount,
		c.Instance.ID,
	)
}
