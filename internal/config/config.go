package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var ErrMissingEnvironmentVariables = errors.New("missing required environment variables")

// Config holds application configuration loaded from files, .env, the
// environment and command line flags.
type Config struct {
	Env        string     `mapstructure:"env"`     // local, dev, production
	Verbose    bool       `mapstructure:"verbose"` // debug logging
	OpenAI     OpenAI     `mapstructure:"openai"`
	NLP        NLP        `mapstructure:"nlp"`
	DB         DB         `mapstructure:"db"`
	HTTP       HTTP       `mapstructure:"http"`
	AMQP       AMQP       `mapstructure:"amqp"`
	Transcript Transcript `mapstructure:"transcript"`
	Telegram   Telegram   `mapstructure:"telegram"`
}

// OpenAI configures the chat completion endpoint.
type OpenAI struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"` // empty for api.openai.com
	Model   string `mapstructure:"model"`
}

// NLP selects the annotator used for entity and noun-phrase extraction.
type NLP struct {
	Annotator   string `mapstructure:"annotator"` // prose | llm
	MaxConcepts int    `mapstructure:"max_concepts"`
}

// DB configures the quiz archive. An empty driver disables it.
type DB struct {
	Driver string `mapstructure:"driver"` // sqlite3 | pgx
	DSN    string `mapstructure:"dsn"`
}

type HTTP struct {
	Addr          string   `mapstructure:"addr"`
	SessionSecret string   `mapstructure:"session_secret"`
	CORSOrigins   []string `mapstructure:"cors_origins"`
}

// AMQP configures event publishing. An empty URL disables it.
type AMQP struct {
	URL      string `mapstructure:"url"`
	Exchange string `mapstructure:"exchange"`
}

// Transcript configures per-quiz model transcripts. An empty dir disables them.
type Transcript struct {
	Dir string `mapstructure:"dir"`
}

type Telegram struct {
	Token string `mapstructure:"token"`
}

// Load reads configuration. flags may be nil; when given, flags that were
// set on the command line override every other source.
func Load(flags *pflag.FlagSet) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")

	v.SetDefault("env", "local")
	v.SetDefault("verbose", false)
	v.SetDefault("openai.api_key", "")
	v.SetDefault("openai.base_url", "")
	v.SetDefault("openai.model", "gpt-3.5-turbo")
	v.SetDefault("nlp.annotator", "prose")
	v.SetDefault("nlp.max_concepts", 10)
	v.SetDefault("db.driver", "sqlite3")
	v.SetDefault("db.dsn", "./quiz.db")
	v.SetDefault("http.addr", ":8000")
	v.SetDefault("http.session_secret", "")
	v.SetDefault("http.cors_origins", []string{"*"})
	v.SetDefault("amqp.url", "")
	v.SetDefault("amqp.exchange", "textquiz.events")
	v.SetDefault("transcript.dir", "")
	v.SetDefault("telegram.token", "")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	_ = v.BindEnv("openai.api_key", "OPENAI_API_KEY")
	_ = v.BindEnv("telegram.token", "TELEGRAM_API_TOKEN")
	_ = v.BindEnv("db.dsn", "DATABASE_URL")
	_ = v.BindEnv("env", "APP_ENV")

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("error binding flags: %w", err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var fileLookupErr viper.ConfigFileNotFoundError
		if !errors.As(err, &fileLookupErr) {
			return nil, fmt.Errorf("error loading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}

	if cfg.OpenAI.APIKey == "" {
		return nil, fmt.Errorf("%w: OPENAI_API_KEY", ErrMissingEnvironmentVariables)
	}
	switch cfg.NLP.Annotator {
	case "prose", "llm":
	default:
		return nil, fmt.Errorf("unknown nlp.annotator %q", cfg.NLP.Annotator)
	}

	return &cfg, nil
}
