package config

import (
	"log"
	"time"

	"github.com/caarlos0/env/v6"
)

type Config struct {
	Env        string `env:"ENV" envDefault:"local"`
	HTTPServer HTTPServer
	WSServer   WSServer
	MySQL      MySQL
	Redis      Redis
	Pusher     Pusher
	Game       Game
}

type HTTPServer struct {
	Address     string        `env:"HTTP_ADDRESS" envDefault:"localhost:8080"`
	Timeout     time.Duration `env:"HTTP_TIMEOUT" envDefault:"4s"`
	IdleTimeout time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"60s"`
}

type WSServer struct {
	Address     string        `env:"WS_ADDRESS" envDefault:"localhost:8081"`
	Timeout     time.Duration `env:"WS_TIMEOUT" envDefault:"10s"`
	IdleTimeout time.Duration `env:"WS_IDLE_TIMEOUT" envDefault:"60s"`
}

type MySQL struct {
	DSN string `env:"MYSQL_DSN" envDefault:"root:123@tcp(localhost:3306)/aviator?charset=utf8mb4,utf8&parseTime=True&loc=Local"`
}

type Redis struct {
	Address  string `env:"REDIS_ADDRESS" envDefault:"localhost:6379"`
	Password string `env:"REDIS_PASSWORD" envDefault:""`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
}

// Pusher is optional: when AppID is empty the engine broadcasts only
// through its own websocket hub.
type Pusher struct {
	AppID   string `env:"PUSHER_APP_ID" envDefault:""`
	Key     string `env:"PUSHER_KEY" envDefault:""`
	Secret  string `env:"PUSHER_SECRET" envDefault:""`
	Cluster string `env:"PUSHER_CLUSTER" envDefault:"eu"`
}

// Game holds every value the round engine consumes. Bet amounts are cents,
// multipliers are decimal strings parsed once at startup.
type Game struct {
	BettingWindow time.Duration `env:"BETTING_WINDOW" envDefault:"10s"`
	GameDuration  time.Duration `env:"GAME_DURATION" envDefault:"90s"`
	GracePeriod   time.Duration `env:"GRACE_PERIOD" envDefault:"3s"`
	RoundInterval time.Duration `env:"ROUND_INTERVAL" envDefault:"5s"`
	TickInterval  time.Duration `env:"TICK_INTERVAL" envDefault:"100ms"`
	MinBet        int64         `env:"MIN_BET" envDefault:"100"`
	MaxBet        int64         `env:"MAX_BET" envDefault:"1000000"`
	MinMultiplier string        `env:"MIN_MULTIPLIER" envDefault:"1.00"`
	MaxMultiplier string        `env:"MAX_MULTIPLIER" envDefault:"50.00"`
	HouseEdge     string        `env:"HOUSE_EDGE" envDefault:"0.03"`
	GrowthFactor  string        `env:"GROWTH_FACTOR" envDefault:"1.006"`
}

func MustLoad() *Config {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		log.Fatalf("cannot parse config from env: %v", err)
	}

	return cfg
}
