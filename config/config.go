package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config es la configuración completa del bot.
type Config struct {
	Engine   EngineConfig   `yaml:"engine"`
	Strategy StrategyConfig `yaml:"strategy"`
	Feeds    FeedsConfig    `yaml:"feeds"`
	API      APIConfig      `yaml:"api"`
	Paper    PaperConfig    `yaml:"paper"`
	Storage  StorageConfig  `yaml:"storage"`
	Log      LogConfig      `yaml:"log"`
}

// EngineConfig controla el loop de evaluación.
type EngineConfig struct {
	EvalIntervalSeconds   int    `yaml:"eval_interval_seconds"`
	BookRefetchSeconds    int    `yaml:"book_refetch_seconds"`
	SignalCooldownSeconds int    `yaml:"signal_cooldown_seconds"`
	SeriesSlug            string `yaml:"series_slug"` // serie de mercados Up/Down a seguir
}

// StrategyConfig son los tunables del scorer compuesto.
type StrategyConfig struct {
	Weights                 map[string]float64 `yaml:"weights"`
	MinConfidence           float64            `yaml:"min_confidence"`
	MinScore                float64            `yaml:"min_score"`
	TimeDecayActivationMin  float64            `yaml:"time_decay_activation_min"`
	KellyFraction           float64            `yaml:"kelly_fraction"`
	MaxPositionUSDC         float64            `yaml:"max_position_usdc"`
	MomentumLookbackSeconds int                `yaml:"momentum_lookback_seconds"`
	MinMomentumTrades       int                `yaml:"min_momentum_trades"`
}

// FeedsConfig configura los dos reference feeds.
type FeedsConfig struct {
	MomentumWindowSeconds int             `yaml:"momentum_window_seconds"`
	Binance               BinanceConfig   `yaml:"binance"`
	Chainlink             ChainlinkConfig `yaml:"chainlink"`
}

type BinanceConfig struct {
	BaseURL     string `yaml:"base_url"`
	Symbol      string `yaml:"symbol"`
	PollSeconds int    `yaml:"poll_seconds"`
}

type ChainlinkConfig struct {
	RPCURL      string `yaml:"rpc_url"`
	Aggregator  string `yaml:"aggregator"` // address del aggregator BTC/USD
	PollSeconds int    `yaml:"poll_seconds"`
}

// APIConfig contiene los base URLs de Polymarket.
type APIConfig struct {
	CLOBBase  string `yaml:"clob_base"`
	GammaBase string `yaml:"gamma_base"`
	WSURL     string `yaml:"ws_url"`
}

// PaperConfig controla la simulación de capital.
type PaperConfig struct {
	StartingCapital float64 `yaml:"starting_capital"`
	Compound        bool    `yaml:"compound"`
}

// StorageConfig controla dónde se persisten los datos.
type StorageConfig struct {
	DSN string `yaml:"dsn"` // ruta al archivo SQLite, o ":memory:"
}

// LogConfig controla el formato y nivel de logging.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// Load carga la configuración desde el archivo YAML y el archivo .env si existe.
// Los valores del .env sobreescriben los del YAML para las keys que correspondan.
// Sin archivo YAML se arranca con los defaults.
func Load(path string) (*Config, error) {
	// Cargar .env si existe (silencia error si no hay archivo)
	_ = godotenv.Load()

	var cfg Config
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("config.Load: parse YAML: %w", err)
		}
	case os.IsNotExist(err):
		// sin archivo: defaults + env
	default:
		return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	return &cfg, nil
}

// EvalInterval devuelve el intervalo de evaluación como time.Duration.
func (c *Config) EvalInterval() time.Duration {
	return time.Duration(c.Engine.EvalIntervalSeconds) * time.Second
}

// BookRefetch devuelve el intervalo de refetch REST de orderbooks.
func (c *Config) BookRefetch() time.Duration {
	return time.Duration(c.Engine.BookRefetchSeconds) * time.Second
}

// SignalCooldown devuelve el tiempo mínimo entre trades emitidos.
func (c *Config) SignalCooldown() time.Duration {
	return time.Duration(c.Engine.SignalCooldownSeconds) * time.Second
}

// MomentumLookback devuelve la ventana de trade momentum del scorer.
func (c *Config) MomentumLookback() time.Duration {
	return time.Duration(c.Strategy.MomentumLookbackSeconds) * time.Second
}

// FeedMomentumWindow devuelve la ventana de momentum de los feeds.
func (c *Config) FeedMomentumWindow() time.Duration {
	return time.Duration(c.Feeds.MomentumWindowSeconds) * time.Second
}

// applyEnvOverrides sobreescribe valores con variables de entorno si están presentes.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("POLYGON_RPC_URL"); v != "" {
		cfg.Feeds.Chainlink.RPCURL = v
	}
	if v := os.Getenv("STORAGE_DSN"); v != "" {
		cfg.Storage.DSN = v
	}
}

// setDefaults asegura que los valores requeridos tengan valores sensatos.
func setDefaults(cfg *Config) {
	if cfg.Engine.EvalIntervalSeconds <= 0 {
		cfg.Engine.EvalIntervalSeconds = 5
	}
	if cfg.Engine.BookRefetchSeconds <= 0 {
		cfg.Engine.BookRefetchSeconds = 30
	}
	if cfg.Engine.SignalCooldownSeconds <= 0 {
		cfg.Engine.SignalCooldownSeconds = 30
	}
	if cfg.Engine.SeriesSlug == "" {
		cfg.Engine.SeriesSlug = "bitcoin-up-or-down"
	}
	if cfg.Strategy.MomentumLookbackSeconds <= 0 {
		cfg.Strategy.MomentumLookbackSeconds = 60
	}
	if cfg.Feeds.MomentumWindowSeconds <= 0 {
		cfg.Feeds.MomentumWindowSeconds = 60
	}
	if cfg.Feeds.Binance.PollSeconds <= 0 {
		cfg.Feeds.Binance.PollSeconds = 2
	}
	if cfg.Feeds.Chainlink.PollSeconds <= 0 {
		cfg.Feeds.Chainlink.PollSeconds = 5
	}
	if cfg.API.CLOBBase == "" {
		cfg.API.CLOBBase = "https://clob.polymarket.com"
	}
	if cfg.API.GammaBase == "" {
		cfg.API.GammaBase = "https://gamma-api.polymarket.com"
	}
	if cfg.Paper.StartingCapital <= 0 {
		cfg.Paper.StartingCapital = 1000
	}
	if cfg.Storage.DSN == "" {
		cfg.Storage.DSN = "polyscalp.db"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}
