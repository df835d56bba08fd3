package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDetectHomePrecedence(t *testing.T) {
	t.Setenv("SIGMA_CHAT_HOME", "/tmp/from-env/")

	got, err := DetectHome("/tmp/explicit/")
	require.NoError(t, err)
	require.Equal(t, "/tmp/explicit", got)

	got, err = DetectHome("")
	require.NoError(t, err)
	require.Equal(t, "/tmp/from-env", got)
}

func TestLoadWithoutFileUsesDefaults(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("GOOGLE_API_KEY", "")
	home := t.TempDir()

	cfg, err := Load(home, "")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(home, "catalog.sqlite"), cfg.DBPath)
	require.Equal(t, RenderLite, cfg.Widget.RenderMode)
	require.Equal(t, "Sigma Expert", cfg.Widget.BotName)
	require.Len(t, cfg.Widget.QuickReplies, 3)
	require.Empty(t, cfg.APIKey)
}

func TestLoadMergesYAML(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "k-123")
	home := t.TempDir()
	body := `
responder: canned
widget:
  bot_name: Bitu
  render_mode: plain
  welcome: Xin chào từ Bitu
  quick_replies: [A, B]
  locales:
    en:
      welcome: Hello from Bitu
`
	require.NoError(t, os.WriteFile(filepath.Join(home, "config.yaml"), []byte(body), 0o644))

	cfg, err := Load(home, "")
	require.NoError(t, err)
	require.Equal(t, ResponderCanned, cfg.Responder)
	require.Equal(t, "Bitu", cfg.Widget.BotName)
	require.Equal(t, RenderPlain, cfg.Widget.RenderMode)
	require.Equal(t, "Xin chào từ Bitu", cfg.Widget.Welcome)
	require.Equal(t, []string{"A", "B"}, cfg.Widget.QuickReplies)
	require.Equal(t, "Hello from Bitu", cfg.Widget.Locales["en"].Welcome)
	require.Equal(t, "k-123", cfg.APIKey)

	opts := cfg.SessionOptions()
	require.Equal(t, "Xin chào từ Bitu", opts.Welcome)
	require.Equal(t, "Bitu", opts.Params["bot_name"])
}

func TestLoadLeavesValidationToCaller(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("GOOGLE_API_KEY", "")
	home := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(home, "config.yaml"), []byte("responder: gemini\n"), 0o644))

	cfg, err := Load(home, "")
	require.NoError(t, err)
	require.Equal(t, ResponderGemini, cfg.Responder)
	require.Error(t, cfg.Validate())

	cfg.Responder = ResponderCanned
	require.NoError(t, cfg.Validate())
}

func TestLoadExplicitMissingConfigFails(t *testing.T) {
	_, err := Load(t.TempDir(), filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestValidateRejectsUnknownValues(t *testing.T) {
	cfg := Default(t.TempDir())
	cfg.Widget.RenderMode = "html"
	require.Error(t, cfg.Validate())

	cfg = Default(t.TempDir())
	cfg.Responder = ResponderGemini
	require.Error(t, cfg.Validate())
	cfg.APIKey = "k"
	require.NoError(t, cfg.Validate())
}

func TestWriteDefaultKeepsExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, WriteDefault(path))

	cfg, err := Load(filepath.Dir(path), path)
	require.NoError(t, err)
	require.Equal(t, "Sigma Expert", cfg.Widget.BotName)

	require.NoError(t, os.WriteFile(path, []byte("responder: canned\n"), 0o644))
	require.NoError(t, WriteDefault(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "responder: canned\n", string(data))
}
