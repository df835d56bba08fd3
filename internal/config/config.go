package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"sigma-chat/internal/session"
)

const DefaultGlamourStyle = "dark"

const (
	RenderPlain   = "plain"
	RenderLite    = "lite"
	RenderGlamour = "glamour"
)

const (
	ResponderAuto    = "auto"
	ResponderGemini  = "gemini"
	ResponderCatalog = "catalog"
	ResponderCanned  = "canned"
)

const DefaultModel = "gemini-2.5-flash"

// Widget is the user facing part of the configuration, read from
// config.yaml.
type Widget struct {
	BotName        string `yaml:"bot_name"`
	Placeholder    string `yaml:"placeholder"`
	Locale         string `yaml:"locale"`
	RenderMode     string `yaml:"render_mode"`
	session.Labels `yaml:",inline"`
	Locales        map[string]session.Labels `yaml:"locales,omitempty"`
	// SystemPrompt is sent to the model responder as its instruction.
	SystemPrompt string `yaml:"system_prompt,omitempty"`
}

type AppConfig struct {
	Home       string `yaml:"-"`
	ConfigPath string `yaml:"-"`
	DBPath     string `yaml:"db_path"`
	ExportDir  string `yaml:"export_dir"`
	LogPath    string `yaml:"log_path"`
	Responder  string `yaml:"responder"`
	Model      string `yaml:"model"`
	Addr       string `yaml:"addr"`
	APIKey     string `yaml:"-"`
	Verbose    bool   `yaml:"-"`
	Widget     Widget `yaml:"widget"`
}

func DefaultWidget() Widget {
	return Widget{
		BotName:     "Sigma Expert",
		Placeholder: "Nhập nội dung cần hỗ trợ...",
		Locale:      "vi",
		RenderMode:  RenderLite,
		Labels: session.Labels{
			Welcome:      `Chào bạn! Tôi là trợ lý Sigma. Thử nhập "điện thoại" để xem sản phẩm hoặc "kể chuyện" để xem streaming nhé!`,
			ErrorMessage: session.DefaultErrorMessage,
			QuickReplies: []string{"Điện thoại iPhone", "Chính sách bảo hành", "Kể một câu chuyện"},
		},
		Locales: map[string]session.Labels{
			"en": {
				Welcome:      `Hi! I'm the Sigma assistant. Try "phone" to browse products or "story" to watch streaming.`,
				ErrorMessage: "Sorry, something went wrong. Please try again later.",
				QuickReplies: []string{"iPhone deals", "Warranty policy", "Tell me a story"},
			},
		},
	}
}

func Default(home string) AppConfig {
	return AppConfig{
		Home:       home,
		ConfigPath: filepath.Join(home, "config.yaml"),
		DBPath:     filepath.Join(home, "catalog.sqlite"),
		ExportDir:  filepath.Join(home, "exports"),
		LogPath:    filepath.Join(home, "sigma-chat.log"),
		Responder:  ResponderAuto,
		Model:      DefaultModel,
		Addr:       "127.0.0.1:8080",
		Widget:     DefaultWidget(),
	}
}

// Load resolves the home directory, applies config.yaml on top of the
// defaults and then the environment. A missing config file is only an error
// when configPath was given explicitly. The result is not validated; callers
// apply their overrides first and then call Validate.
func Load(explicitHome, configPath string) (AppConfig, error) {
	home, err := DetectHome(explicitHome)
	if err != nil {
		return AppConfig{}, err
	}
	cfg := Default(home)

	explicit := configPath != ""
	if explicit {
		cfg.ConfigPath = filepath.Clean(configPath)
	}
	if err := cfg.readFile(explicit); err != nil {
		return cfg, err
	}

	cfg.APIKey = DetectAPIKey()
	if err := os.MkdirAll(cfg.Home, 0o755); err != nil {
		return cfg, fmt.Errorf("create home dir: %w", err)
	}
	return cfg, nil
}

func (c *AppConfig) readFile(mustExist bool) error {
	data, err := os.ReadFile(c.ConfigPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !mustExist {
			return nil
		}
		return fmt.Errorf("read config %s: %w", c.ConfigPath, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %s: %w", c.ConfigPath, err)
	}
	return nil
}

func (c AppConfig) Validate() error {
	switch c.Widget.RenderMode {
	case RenderPlain, RenderLite, RenderGlamour:
	default:
		return fmt.Errorf("unknown render mode %q", c.Widget.RenderMode)
	}
	switch c.Responder {
	case ResponderAuto, ResponderGemini, ResponderCatalog, ResponderCanned:
	default:
		return fmt.Errorf("unknown responder %q", c.Responder)
	}
	if c.Responder == ResponderGemini && c.APIKey == "" {
		return errors.New("gemini responder needs GEMINI_API_KEY or GOOGLE_API_KEY")
	}
	return nil
}

// SessionOptions maps the widget texts onto session labels.
func (c AppConfig) SessionOptions() session.Options {
	return session.Options{
		Labels:  c.Widget.Labels,
		Locale:  c.Widget.Locale,
		Locales: c.Widget.Locales,
		Params:  map[string]string{"bot_name": c.Widget.BotName},
	}
}

func DetectHome(explicit string) (string, error) {
	if explicit != "" {
		return filepath.Clean(explicit), nil
	}
	if fromEnv := os.Getenv("SIGMA_CHAT_HOME"); fromEnv != "" {
		return filepath.Clean(fromEnv), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".local", "share", "sigma-chat"), nil
}

func DetectAPIKey() string {
	for _, name := range []string{"GEMINI_API_KEY", "GOOGLE_API_KEY"} {
		if v := strings.TrimSpace(os.Getenv(name)); v != "" {
			return v
		}
	}
	return ""
}

// WriteDefault writes the default widget file unless one already exists.
func WriteDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	cfg := Default(filepath.Dir(path))
	data, err := yaml.Marshal(&cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
