package config

import (
	"errors"
	"io/fs"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	configPathEnv          = "CONTENT_PUBLISHER_CONFIG"
	telegramTokenEnv       = "TELEGRAM_BOT_TOKEN"
	telegramChatIDEnv      = "TELEGRAM_CHAT_ID"
	telegramAuthorizedEnv  = "TELEGRAM_AUTHORIZED_USERS"
	discordWebhookEnv      = "DISCORD_WEBHOOK_URL"
	openAIKeyEnv           = "OPENAI_API_KEY"
	openAIModelEnv         = "OPENAI_MODEL"
	platformEmailEnv       = "PLATFORM_EMAIL"
	platformPasswordEnv    = "PLATFORM_PASSWORD"
	browserRemoteURLEnv    = "BROWSER_REMOTE_URL"
	logLevelEnv            = "LOG_LEVEL"
	debugModeEnv           = "DEBUG_MODE"
	defaultDotEnvPath      = ".env"
	defaultMaxUploadBytes  = 10 << 20
	defaultMaxPostChars    = 1300
	defaultMinExtracted    = 20
	defaultSubmitTimeoutOn = "likely-success"
)

// Config holds high-level settings required across the application.
type Config struct {
	Logging    LoggingConfig    `yaml:"logging"`
	Storage    StorageConfig    `yaml:"storage"`
	Pipeline   PipelineConfig   `yaml:"pipeline"`
	ChatGPT    ChatGPTConfig    `yaml:"chatgpt"`
	Platform   PlatformConfig   `yaml:"platform"`
	Automation AutomationConfig `yaml:"automation"`
	Telegram   TelegramConfig   `yaml:"telegram"`
	Discord    DiscordConfig    `yaml:"discord"`
	Inbox      InboxConfig      `yaml:"inbox"`
}

// LoggingConfig selects the slog level and handler.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// StorageConfig places the queue, audit log and scratch directories.
type StorageConfig struct {
	Root        string `yaml:"root"`
	EventsDir   string `yaml:"eventsDir"`
	DownloadDir string `yaml:"downloadDir"`
}

// PipelineConfig bounds content sizes and publish attempts.
type PipelineConfig struct {
	MinExtractedChars int           `yaml:"minExtractedChars"`
	MaxPostChars      int           `yaml:"maxPostChars"`
	MaxUploadBytes    int64         `yaml:"maxUploadBytes"`
	Ellipsis          string        `yaml:"ellipsis"`
	PublishTimeout    time.Duration `yaml:"publishTimeout"`
}

// ChatGPTConfig defines how to contact the ChatGPT API.
type ChatGPTConfig struct {
	Endpoint     string        `yaml:"endpoint"`
	Model        string        `yaml:"model"`
	APIKey       string        `yaml:"apiKey"`
	SystemPrompt string        `yaml:"systemPrompt"`
	Temperature  float64       `yaml:"temperature"`
	MaxTokens    int           `yaml:"maxTokens"`
	Timeout      time.Duration `yaml:"timeout"`
}

// PlatformConfig names the publishing site and the account used on it.
type PlatformConfig struct {
	BaseURL             string   `yaml:"baseUrl"`
	LoginPath           string   `yaml:"loginPath"`
	FeedPath            string   `yaml:"feedPath"`
	VerificationMarkers []string `yaml:"verificationMarkers"`
	Email               string   `yaml:"email"`
	Password            string   `yaml:"password"`
}

// Configured reports whether credentials are present.
func (p PlatformConfig) Configured() bool {
	return p.Email != "" && p.Password != ""
}

// AutomationConfig controls the browser and the publish flow timings.
type AutomationConfig struct {
	Headless            bool          `yaml:"headless"`
	Debug               bool          `yaml:"debug"`
	RemoteURL           string        `yaml:"remoteUrl"`
	ProfileRoot         string        `yaml:"profileRoot"`
	UserAgent           string        `yaml:"userAgent"`
	WindowWidth         int           `yaml:"windowWidth"`
	WindowHeight        int           `yaml:"windowHeight"`
	MaxSessions         int           `yaml:"maxSessions"`
	MinInterval         time.Duration `yaml:"minInterval"`
	SelectorsFile       string        `yaml:"selectorsFile"`
	ArtifactsDir        string        `yaml:"artifactsDir"`
	SubmitTimeoutPolicy string        `yaml:"submitTimeoutPolicy"`
	PollInterval        time.Duration `yaml:"pollInterval"`
	NavigateTimeout     time.Duration `yaml:"navigateTimeout"`
	LoginTimeout        time.Duration `yaml:"loginTimeout"`
	SelectorTimeout     time.Duration `yaml:"selectorTimeout"`
	ConfirmTimeout      time.Duration `yaml:"confirmTimeout"`
	ComposeRetryTimeout time.Duration `yaml:"composeRetryTimeout"`
	OverlayTimeout      time.Duration `yaml:"overlayTimeout"`
	SubmitEnableTimeout time.Duration `yaml:"submitEnableTimeout"`
	CaptureTimeout      time.Duration `yaml:"captureTimeout"`
}

// TelegramConfig wires the bot front end and the alert chat.
type TelegramConfig struct {
	BotToken        string        `yaml:"botToken"`
	ChatID          string        `yaml:"chatId"`
	APIBase         string        `yaml:"apiBase"`
	AuthorizedUsers []int64       `yaml:"authorizedUsers"`
	PollTimeout     time.Duration `yaml:"pollTimeout"`
}

// DiscordConfig holds the alert webhook.
type DiscordConfig struct {
	WebhookURL string `yaml:"webhookUrl"`
	Username   string `yaml:"username"`
}

// InboxConfig enables the drop-directory sweep when Dir is set.
type InboxConfig struct {
	Dir       string        `yaml:"dir"`
	Interval  time.Duration `yaml:"interval"`
	Requester string        `yaml:"requester"`
}

// Load reads .env and the YAML configuration (if present) and applies
// environment overrides.
func Load() Config {
	if err := godotenv.Load(defaultDotEnvPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Printf("config: cannot load %s: %v", defaultDotEnvPath, err)
	}

	cfg := defaultConfig()

	if path := os.Getenv(configPathEnv); path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else {
			var fileCfg Config
			if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
				log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			} else {
				cfg = mergeConfig(cfg, fileCfg)
			}
		}
	}

	cfg.applyEnvOverrides()

	if cfg.Inbox.Requester == "" {
		cfg.Inbox.Requester = cfg.Telegram.ChatID
	}
	return cfg
}

func (c *Config) applyEnvOverrides() {
	setString(&c.Telegram.BotToken, telegramTokenEnv)
	setString(&c.Telegram.ChatID, telegramChatIDEnv)
	setString(&c.Discord.WebhookURL, discordWebhookEnv)
	setString(&c.ChatGPT.APIKey, openAIKeyEnv)
	setString(&c.ChatGPT.Model, openAIModelEnv)
	setString(&c.Platform.Email, platformEmailEnv)
	setString(&c.Platform.Password, platformPasswordEnv)
	setString(&c.Automation.RemoteURL, browserRemoteURLEnv)
	setString(&c.Logging.Level, logLevelEnv)

	if v := os.Getenv(telegramAuthorizedEnv); v != "" {
		c.Telegram.AuthorizedUsers = parseIDs(v)
	}

	if v := os.Getenv(debugModeEnv); v != "" {
		debug, err := strconv.ParseBool(v)
		if err != nil {
			log.Printf("config: invalid %s=%q, ignoring", debugModeEnv, v)
			return
		}
		c.Automation.Debug = debug
		c.Automation.Headless = !debug
	}
}

func setString(dst *string, env string) {
	if v := os.Getenv(env); v != "" {
		*dst = v
	}
}

// parseIDs reads a comma-separated list of numeric user ids, skipping junk.
func parseIDs(raw string) []int64 {
	var ids []int64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			log.Printf("config: skipping invalid user id %q", part)
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

func mergeConfig(base, override Config) Config {
	mergeString(&base.Logging.Level, override.Logging.Level)
	mergeString(&base.Logging.Format, override.Logging.Format)

	mergeString(&base.Storage.Root, override.Storage.Root)
	mergeString(&base.Storage.EventsDir, override.Storage.EventsDir)
	mergeString(&base.Storage.DownloadDir, override.Storage.DownloadDir)

	if override.Pipeline.MinExtractedChars > 0 {
		base.Pipeline.MinExtractedChars = override.Pipeline.MinExtractedChars
	}
	if override.Pipeline.MaxPostChars > 0 {
		base.Pipeline.MaxPostChars = override.Pipeline.MaxPostChars
	}
	if override.Pipeline.MaxUploadBytes > 0 {
		base.Pipeline.MaxUploadBytes = override.Pipeline.MaxUploadBytes
	}
	mergeString(&base.Pipeline.Ellipsis, override.Pipeline.Ellipsis)
	mergeDuration(&base.Pipeline.PublishTimeout, override.Pipeline.PublishTimeout)

	mergeString(&base.ChatGPT.Endpoint, override.ChatGPT.Endpoint)
	mergeString(&base.ChatGPT.Model, override.ChatGPT.Model)
	mergeString(&base.ChatGPT.APIKey, override.ChatGPT.APIKey)
	mergeString(&base.ChatGPT.SystemPrompt, override.ChatGPT.SystemPrompt)
	if override.ChatGPT.Temperature > 0 {
		base.ChatGPT.Temperature = override.ChatGPT.Temperature
	}
	if override.ChatGPT.MaxTokens > 0 {
		base.ChatGPT.MaxTokens = override.ChatGPT.MaxTokens
	}
	mergeDuration(&base.ChatGPT.Timeout, override.ChatGPT.Timeout)

	mergeString(&base.Platform.BaseURL, override.Platform.BaseURL)
	mergeString(&base.Platform.LoginPath, override.Platform.LoginPath)
	mergeString(&base.Platform.FeedPath, override.Platform.FeedPath)
	mergeString(&base.Platform.Email, override.Platform.Email)
	mergeString(&base.Platform.Password, override.Platform.Password)
	if len(override.Platform.VerificationMarkers) > 0 {
		base.Platform.VerificationMarkers = override.Platform.VerificationMarkers
	}

	mergeAutomation(&base.Automation, override.Automation)

	mergeString(&base.Telegram.BotToken, override.Telegram.BotToken)
	mergeString(&base.Telegram.ChatID, override.Telegram.ChatID)
	mergeString(&base.Telegram.APIBase, override.Telegram.APIBase)
	if len(override.Telegram.AuthorizedUsers) > 0 {
		base.Telegram.AuthorizedUsers = override.Telegram.AuthorizedUsers
	}
	mergeDuration(&base.Telegram.PollTimeout, override.Telegram.PollTimeout)

	mergeString(&base.Discord.WebhookURL, override.Discord.WebhookURL)
	mergeString(&base.Discord.Username, override.Discord.Username)

	mergeString(&base.Inbox.Dir, override.Inbox.Dir)
	mergeString(&base.Inbox.Requester, override.Inbox.Requester)
	mergeDuration(&base.Inbox.Interval, override.Inbox.Interval)

	return base
}

func mergeAutomation(base *AutomationConfig, override AutomationConfig) {
	// Booleans cannot be told apart from "unset"; a file that enables debug
	// always means a visible browser.
	if override.Debug {
		base.Debug = true
		base.Headless = false
	}
	mergeString(&base.RemoteURL, override.RemoteURL)
	mergeString(&base.ProfileRoot, override.ProfileRoot)
	mergeString(&base.UserAgent, override.UserAgent)
	mergeString(&base.SelectorsFile, override.SelectorsFile)
	mergeString(&base.ArtifactsDir, override.ArtifactsDir)
	mergeString(&base.SubmitTimeoutPolicy, override.SubmitTimeoutPolicy)
	if override.WindowWidth > 0 && override.WindowHeight > 0 {
		base.WindowWidth, base.WindowHeight = override.WindowWidth, override.WindowHeight
	}
	if override.MaxSessions > 0 {
		base.MaxSessions = override.MaxSessions
	}
	mergeDuration(&base.MinInterval, override.MinInterval)
	mergeDuration(&base.PollInterval, override.PollInterval)
	mergeDuration(&base.NavigateTimeout, override.NavigateTimeout)
	mergeDuration(&base.LoginTimeout, override.LoginTimeout)
	mergeDuration(&base.SelectorTimeout, override.SelectorTimeout)
	mergeDuration(&base.ConfirmTimeout, override.ConfirmTimeout)
	mergeDuration(&base.ComposeRetryTimeout, override.ComposeRetryTimeout)
	mergeDuration(&base.OverlayTimeout, override.OverlayTimeout)
	mergeDuration(&base.SubmitEnableTimeout, override.SubmitEnableTimeout)
	mergeDuration(&base.CaptureTimeout, override.CaptureTimeout)
}

func mergeString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func mergeDuration(dst *time.Duration, v time.Duration) {
	if v > 0 {
		*dst = v
	}
}

func defaultConfig() Config {
	return Config{
		Logging: LoggingConfig{Level: "info", Format: "text"},
		Storage: StorageConfig{
			Root:        "data/queue",
			EventsDir:   "data/events",
			DownloadDir: "data/downloads",
		},
		Pipeline: PipelineConfig{
			MinExtractedChars: defaultMinExtracted,
			MaxPostChars:      defaultMaxPostChars,
			MaxUploadBytes:    defaultMaxUploadBytes,
			Ellipsis:          "...",
			PublishTimeout:    5 * time.Minute,
		},
		ChatGPT: ChatGPTConfig{
			Endpoint:     "https://api.openai.com/v1/chat/completions",
			Model:        "gpt-4o-mini",
			SystemPrompt: "You turn articles into short professional social posts with a hook, key points, a question and 3 to 5 hashtags.",
			Temperature:  0.7,
			MaxTokens:    600,
			Timeout:      60 * time.Second,
		},
		Platform: PlatformConfig{
			BaseURL:             "https://www.linkedin.com",
			LoginPath:           "/login",
			FeedPath:            "/feed/",
			VerificationMarkers: []string{"checkpoint", "challenge"},
		},
		Automation: AutomationConfig{
			Headless:            true,
			WindowWidth:         1920,
			WindowHeight:        1080,
			MaxSessions:         1,
			MinInterval:         time.Minute,
			ArtifactsDir:        "data/artifacts",
			SubmitTimeoutPolicy: defaultSubmitTimeoutOn,
			PollInterval:        250 * time.Millisecond,
			NavigateTimeout:     30 * time.Second,
			LoginTimeout:        30 * time.Second,
			SelectorTimeout:     20 * time.Second,
			ConfirmTimeout:      15 * time.Second,
			ComposeRetryTimeout: 10 * time.Second,
			OverlayTimeout:      2 * time.Second,
			SubmitEnableTimeout: 5 * time.Second,
			CaptureTimeout:      10 * time.Second,
		},
		Telegram: TelegramConfig{PollTimeout: 30 * time.Second},
		Discord:  DiscordConfig{Username: "Content Publisher"},
		Inbox:    InboxConfig{Interval: time.Minute},
	}
}
