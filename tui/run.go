package tui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/papercomputeco/ollachat/pkg/session"
)

// Run starts the chat screen and blocks until the user quits or ctx ends.
func Run(ctx context.Context, backend Backend, sess *session.Session, settings session.Settings, logger *zap.Logger) error {
	m := New(backend, sess, settings, logger)

	p := tea.NewProgram(m,
		tea.WithAltScreen(),
		tea.WithContext(ctx),
	)

	_, err := p.Run()
	m.abort()
	return err
}
