package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"
)

const (
	// AppName names the xdg directories and the default config file.
	AppName = "onionharvester"

	configPathEnv     = "ONION_HARVESTER_CONFIG"
	groqAPIKeyEnv     = "GROQ_API_KEY"
	llmAPIKeyEnv      = "LLM_API_KEY"
	llmModelEnv       = "LLM_MODEL"
	databaseDSNEnv    = "DATABASE_DSN"
	telegramTokenEnv  = "TELEGRAM_BOT_TOKEN"
	telegramChatIDEnv = "TELEGRAM_CHAT_ID"
)

// Storage drivers.
const (
	DriverFile     = "file"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Listing strategies.
const (
	StrategyArchive = "archive"
	StrategySearch  = "search"
)

const (
	DefaultBaseURL      = "https://pastebin.com"
	DefaultDelay        = 2 * time.Second
	DefaultInterval     = time.Hour
	DefaultTimeout      = 30 * time.Second
	DefaultUserAgent    = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"
	DefaultDataFile     = "onion_links.json"
	DefaultDocumentName = "onion_links"
	DefaultLLMEndpoint  = "https://api.groq.com/openai/v1/chat/completions"
	DefaultLLMModel     = "meta-llama/llama-3.1-70b-versatile"
	DefaultProxyTestURL = "https://httpbin.org/ip"
	DefaultTorAddress   = "127.0.0.1:9050"
)

// Config holds high-level settings required across the application.
type Config struct {
	Logging       LoggingConfig      `yaml:"logging"`
	Storage       StorageConfig      `yaml:"storage"`
	Harvest       HarvestConfig      `yaml:"harvest"`
	Sources       []SourceConfig     `yaml:"sources"`
	LLM           LLMConfig          `yaml:"llm"`
	Proxy         ProxyConfig        `yaml:"proxy"`
	Tor           TorConfig          `yaml:"tor"`
	Notifications NotificationConfig `yaml:"notifications"`
	API           APIConfig          `yaml:"api"`

	// Path is the file the configuration was read from, empty for defaults.
	Path string `yaml:"-"`
}

// LoggingConfig selects slog level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// StorageConfig describes the durable sink of the dataset.
type StorageConfig struct {
	Driver string `yaml:"driver"`
	Path   string `yaml:"path"`
	DSN    string `yaml:"dsn"`
	// Name is the document key used by SQL drivers.
	Name string `yaml:"name"`
}

// HarvestConfig tunes the harvest driver.
type HarvestConfig struct {
	BaseURL         string        `yaml:"baseUrl"`
	Delay           time.Duration `yaml:"delay"`
	Interval        time.Duration `yaml:"interval"`
	Timeout         time.Duration `yaml:"timeout"`
	UserAgent       string        `yaml:"userAgent"`
	MaxKeysPerCycle int           `yaml:"maxKeysPerCycle"`
}

// SourceConfig describes a listing source with its strategy.
type SourceConfig struct {
	Name     string            `yaml:"name"`
	Strategy string            `yaml:"strategy"`
	URL      string            `yaml:"url"`
	Terms    []string          `yaml:"terms"`
	Options  map[string]string `yaml:"options"`
}

// LLMConfig defines how to contact the OpenAI compatible API.
type LLMConfig struct {
	Endpoint          string        `yaml:"endpoint"`
	Model             string        `yaml:"model"`
	APIKey            string        `yaml:"apiKey"`
	MaxTokens         int           `yaml:"maxTokens"`
	RequestsPerMinute int           `yaml:"requestsPerMinute"`
	Timeout           time.Duration `yaml:"timeout"`
	Disabled          bool          `yaml:"disabled"`
}

// Enabled reports whether the LLM collaborator can be used.
func (c LLMConfig) Enabled() bool {
	return !c.Disabled && strings.TrimSpace(c.APIKey) != ""
}

// ProxyConfig enables rotating HTTP or SOCKS5 proxies.
type ProxyConfig struct {
	Enabled      bool     `yaml:"enabled"`
	File         string   `yaml:"file"`
	Proxies      []string `yaml:"proxies"`
	MaxRetries   int      `yaml:"maxRetries"`
	TestURL      string   `yaml:"testUrl"`
	CheckOnStart bool     `yaml:"checkOnStart"`
	CheckWorkers int      `yaml:"checkWorkers"`
}

// TorConfig routes harvesting through Tor.
type TorConfig struct {
	Enabled        bool          `yaml:"enabled"`
	Embedded       bool          `yaml:"embedded"`
	SocksAddr      string        `yaml:"socksAddr"`
	StartupTimeout time.Duration `yaml:"startupTimeout"`
}

// NotificationConfig encapsulates outbound channels (Telegram, etc.).
type NotificationConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
}

// TelegramConfig wires all data required to send messages.
type TelegramConfig struct {
	BotToken string `yaml:"botToken"`
	ChatID   string `yaml:"chatId"`
}

// Enabled reports whether both token and chat are configured.
func (t TelegramConfig) Enabled() bool {
	return t.BotToken != "" && t.ChatID != ""
}

// APIConfig configures the read-only status API; empty Listen disables it.
type APIConfig struct {
	Listen string `yaml:"listen"`
}

// XDGDataDir returns the directory holding the dataset by default.
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the directory searched for config.yaml.
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Load resolves the configuration file (see FindConfigFile), decodes it on
// top of the defaults and applies environment overrides. An explicit path
// that does not exist is an error; otherwise a missing file means defaults.
func Load(explicitPath string) (Config, error) {
	cfg := defaultConfig()

	path, err := FindConfigFile(explicitPath)
	if err != nil {
		return Config{}, err
	}
	if path != "" {
		raw, err := os.ReadFile(path) //nolint:gosec // config path is chosen by the operator
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
		cfg.Path = path
	}

	cfg.applyEnvOverrides()
	cfg.fillDefaults()
	return cfg, nil
}

// Default returns the built-in configuration with environment overrides.
func Default() Config {
	cfg := defaultConfig()
	cfg.applyEnvOverrides()
	cfg.fillDefaults()
	return cfg
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(groqAPIKeyEnv); v != "" {
		c.LLM.APIKey = v
	}
	if v := os.Getenv(llmAPIKeyEnv); v != "" {
		c.LLM.APIKey = v
	}
	if v := os.Getenv(llmModelEnv); v != "" {
		c.LLM.Model = v
	}

	if v := os.Getenv(databaseDSNEnv); v != "" {
		c.Storage.DSN = v
	}

	if v := os.Getenv(telegramTokenEnv); v != "" {
		c.Notifications.Telegram.BotToken = v
	}
	if v := os.Getenv(telegramChatIDEnv); v != "" {
		c.Notifications.Telegram.ChatID = v
	}
}

// fillDefaults restores values a config file blanked out.
func (c *Config) fillDefaults() {
	def := defaultConfig()

	if c.Logging.Level == "" {
		c.Logging.Level = def.Logging.Level
	}
	if c.Logging.Format == "" {
		c.Logging.Format = def.Logging.Format
	}

	if c.Storage.Driver == "" {
		c.Storage.Driver = def.Storage.Driver
	}
	if c.Storage.Path == "" {
		c.Storage.Path = def.Storage.Path
	}
	if c.Storage.Name == "" {
		c.Storage.Name = def.Storage.Name
	}
	if c.Storage.Driver == DriverSQLite && c.Storage.DSN == "" {
		c.Storage.DSN = filepath.Join(XDGDataDir(), AppName+".db")
	}

	if c.Harvest.BaseURL == "" {
		c.Harvest.BaseURL = def.Harvest.BaseURL
	}
	c.Harvest.BaseURL = strings.TrimSuffix(c.Harvest.BaseURL, "/")
	if c.Harvest.UserAgent == "" {
		c.Harvest.UserAgent = def.Harvest.UserAgent
	}

	if len(c.Sources) == 0 {
		c.Sources = def.Sources
	}
	for i := range c.Sources {
		if c.Sources[i].Name == "" {
			c.Sources[i].Name = c.Sources[i].Strategy
		}
	}

	if c.LLM.Endpoint == "" {
		c.LLM.Endpoint = def.LLM.Endpoint
	}
	if c.LLM.Model == "" {
		c.LLM.Model = def.LLM.Model
	}

	if c.Proxy.TestURL == "" {
		c.Proxy.TestURL = def.Proxy.TestURL
	}
	if c.Tor.SocksAddr == "" && !c.Tor.Embedded {
		c.Tor.SocksAddr = def.Tor.SocksAddr
	}
}

func defaultConfig() Config {
	return Config{
		Logging: LoggingConfig{Level: "info", Format: "text"},
		Storage: StorageConfig{
			Driver: DriverFile,
			Path:   filepath.Join(XDGDataDir(), DefaultDataFile),
			Name:   DefaultDocumentName,
		},
		Harvest: HarvestConfig{
			BaseURL:   DefaultBaseURL,
			Delay:     DefaultDelay,
			Interval:  DefaultInterval,
			Timeout:   DefaultTimeout,
			UserAgent: DefaultUserAgent,
		},
		Sources: []SourceConfig{
			{Name: "pastebin-archive", Strategy: StrategyArchive},
		},
		LLM: LLMConfig{
			Endpoint:          DefaultLLMEndpoint,
			Model:             DefaultLLMModel,
			MaxTokens:         1000,
			RequestsPerMinute: 30,
			Timeout:           30 * time.Second,
		},
		Proxy: ProxyConfig{
			MaxRetries:   5,
			TestURL:      DefaultProxyTestURL,
			CheckWorkers: 20,
		},
		Tor: TorConfig{
			SocksAddr:      DefaultTorAddress,
			StartupTimeout: 3 * time.Minute,
		},
	}
}

// Validate checks the configuration and returns a sentinel error on the first problem.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("%w: %q", ErrInvalidLogLevel, c.Logging.Level)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("%w: %q", ErrInvalidLogFormat, c.Logging.Format)
	}

	switch c.Storage.Driver {
	case DriverFile:
		if c.Storage.Path == "" {
			return ErrMissingStoragePath
		}
	case DriverSQLite, DriverPostgres:
		if c.Storage.DSN == "" {
			return ErrMissingDSN
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownStorageDriver, c.Storage.Driver)
	}

	if c.Harvest.Delay < 0 {
		return ErrInvalidDelay
	}
	if c.Harvest.Interval <= 0 {
		return ErrInvalidInterval
	}
	if c.Harvest.Timeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.Harvest.MaxKeysPerCycle < 0 {
		return ErrInvalidMaxKeys
	}

	if len(c.Sources) == 0 {
		return ErrNoSources
	}
	for _, src := range c.Sources {
		switch src.Strategy {
		case StrategyArchive:
		case StrategySearch:
			if len(src.Terms) == 0 {
				return fmt.Errorf("%w: source %s", ErrMissingSearchTerms, src.Name)
			}
		default:
			return fmt.Errorf("%w: %q in source %s", ErrUnknownStrategy, src.Strategy, src.Name)
		}
	}

	if c.LLM.Enabled() {
		if c.LLM.RequestsPerMinute <= 0 {
			return ErrInvalidRateLimit
		}
		if c.LLM.Timeout <= 0 {
			return ErrInvalidTimeout
		}
	}

	if c.Proxy.Enabled {
		if c.Proxy.MaxRetries < 1 {
			return ErrInvalidMaxRetries
		}
		if c.Proxy.File == "" && len(c.Proxy.Proxies) == 0 {
			return ErrNoProxies
		}
	}
	if c.Proxy.Enabled && c.Tor.Enabled {
		return ErrConflictingTransports
	}
	if c.Tor.Enabled && c.Tor.Embedded && c.Tor.StartupTimeout <= 0 {
		return ErrInvalidTimeout
	}

	if (c.Notifications.Telegram.BotToken == "") != (c.Notifications.Telegram.ChatID == "") {
		return ErrIncompleteTelegram
	}

	return nil
}
