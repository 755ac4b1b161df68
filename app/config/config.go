package config

import (
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/samber/oops"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Log       Log       `yaml:"log"`
	DB        DB        `yaml:"db"`
	Room      Room      `yaml:"room"`
	OpenAI    OpenAI    `yaml:"openai"`
	Speech    Speech    `yaml:"speech"`
	TTS       TTS       `yaml:"tts"`
	Interview Interview `yaml:"interview"`
	Tools     Tools     `yaml:"tools"`
}

type OpenAI struct {
	Chat      ModelConfig `yaml:"chat" validate:"required"`
	Embedding ModelConfig `yaml:"embedding" validate:"required"`
}

type ModelConfig struct {
	// OpenAI base url
	BaseURL string `yaml:"base_url" example:"https://api.openai.com/v1" validate:"required"`
	// OpenAI token
	Token string `yaml:"token" example:"sk-proj-abc123456789DEF789ghi012JKL345mno678PQR901stu234VWX" validate:"required"`
	// OpenAI model
	Model string `yaml:"model" example:"gpt-4o-mini" validate:"required"`
}

type Room struct {
	// Room server base URL
	URL string `yaml:"url" example:"wss://interviews.example.com" validate:"required"`
	// API key, used as the token issuer
	APIKey string `yaml:"api_key" validate:"required"`
	// Shared secret used to sign access tokens
	APISecret string `yaml:"api_secret" validate:"required"`
	// Prefix of the room names this agent serves
	RoomPrefix string `yaml:"room_prefix" example:"interview-"`
}

type Speech struct {
	// Path to the Yandex Cloud service account key file
	KeyFile string `yaml:"key_file" example:"service-account-key.json" validate:"required"`
	// STT language whitelist entry
	Language string `yaml:"language" example:"en-US"`
}

type TTS struct {
	// Cartesia API key
	Token string `yaml:"token" validate:"required"`
	// Cartesia voice ID
	VoiceID string `yaml:"voice_id" example:"9626c31c-bec5-4cca-baa8-f8ba9e84c8bc"`
}

type Interview struct {
	// Maximum number of concurrent interview sessions per process
	MaxConcurrentSessions int `yaml:"max_concurrent_sessions" example:"5"`
	// Seconds of user inactivity before a session is reaped
	IdleTimeoutSec int `yaml:"idle_timeout_sec" example:"900"`
	// Seconds between activity monitor ticks
	ActivityCheckIntervalSec int `yaml:"activity_check_interval_sec" example:"60"`
	// Seconds to wait before re-checking an empty room
	EmptyRoomGracePeriodSec int `yaml:"empty_room_grace_period_sec" example:"3"`
	// Number of unique documentation chunks per retrieval
	RetrievalK int `yaml:"retrieval_k" example:"4"`
	// Token server listen address
	TokenServerAddr string `yaml:"token_server_addr" example:":8000"`
}

type Tools struct {
	// Extra interviewer tools exposed by MCP servers
	MCPServers []MCPServer `yaml:"mcp_servers"`
}

type MCPServer struct {
	// Name, prefixes tool names to avoid collisions
	Name string `yaml:"name" validate:"required"`
	// Command that launches the stdio MCP server
	Command string `yaml:"command" validate:"required"`
	// Command arguments
	Args []string `yaml:"args"`
}

type Log struct {
	// Telegram logging config
	Telegram TelegramLog `yaml:"telegram"`
}

type TelegramLog struct {
	// Chat bot token, obtain it via BotFather
	Token string `yaml:"token" example:"1234567890:ABCdefGHIjklMNopQRstUVwxyZ-123456789"`
	// Chat ID to send messages to
	ChatID string `yaml:"chat_id" example:"1001234567890"`
}

type DB struct {
	// Postgres username
	User string `yaml:"user" example:"postgres" validate:"required"`
	// Postgres password
	Pass string `yaml:"pass" validate:"required"`
	// Postgres host
	Host string `yaml:"host"  example:"localhost:5432" validate:"required"`
	// Postgres database name
	Database string `yaml:"database" example:"interviews" validate:"required"`
}

func (i Interview) IdleTimeout() time.Duration {
	return time.Duration(i.IdleTimeoutSec) * time.Second
}

func (i Interview) ActivityCheckInterval() time.Duration {
	return time.Duration(i.ActivityCheckIntervalSec) * time.Second
}

func (i Interview) EmptyRoomGracePeriod() time.Duration {
	return time.Duration(i.EmptyRoomGracePeriodSec) * time.Second
}

func Load() (*Config, error) {
	var result Config

	data, err := os.ReadFile("config.yaml")
	if err != nil {
		return nil, oops.Errorf("failed to read config file: %w", err)
	}

	if err = yaml.Unmarshal(data, &result); err != nil {
		return nil, oops.Errorf("failed to parse YAML config: %w", err)
	}

	applyDefaults(&result)

	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(result); err != nil {
		return nil, oops.Errorf("failed to validate config: %w", err)
	}

	return &result, nil
}

func applyDefaults(cfg *Config) {
	if cfg.DB.User == "" {
		cfg.DB.User = "postgres"
	}
	if cfg.DB.Pass == "" {
		cfg.DB.Pass = "postgres"
	}
	if cfg.DB.Host == "" {
		cfg.DB.Host = "localhost:5432"
	}
	if cfg.DB.Database == "" {
		cfg.DB.Database = "interviews"
	}
	if cfg.Room.RoomPrefix == "" {
		cfg.Room.RoomPrefix = "interview-"
	}
	if cfg.Speech.Language == "" {
		cfg.Speech.Language = "en-US"
	}
	if cfg.Interview.MaxConcurrentSessions == 0 {
		cfg.Interview.MaxConcurrentSessions = 5
	}
	if cfg.Interview.IdleTimeoutSec == 0 {
		cfg.Interview.IdleTimeoutSec = 900
	}
	if cfg.Interview.ActivityCheckIntervalSec == 0 {
		cfg.Interview.ActivityCheckIntervalSec = 60
	}
	if cfg.Interview.EmptyRoomGracePeriodSec == 0 {
		cfg.Interview.EmptyRoomGracePeriodSec = 3
	}
	if cfg.Interview.RetrievalK == 0 {
		cfg.Interview.RetrievalK = 4
	}
	if cfg.Interview.TokenServerAddr == "" {
		cfg.Interview.TokenServerAddr = ":8000"
	}
}
