package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"sigma-chat/internal/export"
	"sigma-chat/internal/session"
	"sigma-chat/internal/ui"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start the interactive chat interface",
	Long: `Opens the chat widget in the terminal.

Keys: enter sends (or picks the highlighted suggestion), tab cycles
suggestions, ctrl+r starts a new conversation, ctrl+f searches the
transcript, ctrl+t switches render mode, ctrl+e exports to Markdown and
ctrl+y copies the transcript.`,
	Args: cobra.NoArgs,
	RunE: runChat,
}

func runChat(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	// stdout belongs to bubbletea
	log, err := newLogger(cfg.LogPath)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	collab, cleanup, err := newCollaborator(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer cleanup()

	exp, err := export.New(cfg.ExportDir, cfg.Widget.BotName)
	if err != nil {
		return err
	}

	opts := cfg.SessionOptions()
	opts.Logger = log
	s := session.New(collab, opts)
	log.Info("chat started", zap.String("thread_id", s.ThreadID()), zap.String("responder", cfg.Responder))

	p := tea.NewProgram(ui.NewModel(ctx, cfg, s, exp, log), tea.WithAltScreen(), tea.WithMouseCellMotion(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("run chat: %w", err)
	}
	return nil
}
