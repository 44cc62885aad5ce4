package cmd

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github/itish2003/studybuddy/config"
	"github/itish2003/studybuddy/services"
	"github/itish2003/studybuddy/tui"
)

var chatCmd = &cobra.Command{
	Use:   "chat <file|url>...",
	Short: "Index files or web pages and chat about them in the terminal",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runChat,
}

func init() {
	rootCmd.AddCommand(chatCmd)
}

// sessionAsker binds the pipeline to a single session for the TUI.
type sessionAsker struct {
	rag     services.RAGService
	session *services.Session
}

func (s sessionAsker) Ask(ctx context.Context, question string) (*services.Answer, error) {
	return s.rag.Ask(ctx, s.session, question)
}

func runChat(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(flagConfigPath)
	if err != nil {
		return err
	}
	// the TUI owns the terminal
	if cfg.Logging.File == "" {
		cfg.Logging.File = "studybuddy.log"
	}
	cfg.Logging.FileOnly = true
	ctx := cmd.Context()

	a, err := newApp(ctx, cfg, false)
	if err != nil {
		return err
	}
	defer a.Close()

	docs, err := loadSources(ctx, a.loader, args)
	if err != nil {
		return err
	}
	session, _ := a.sessions.Resolve("")
	chunks, err := a.rag.ProcessDocuments(ctx, session, docs)
	if err != nil {
		return err
	}

	summary := fmt.Sprintf("%d source(s), %d document(s), %d chunks indexed.", len(args), len(docs), chunks)
	timeout := time.Duration(cfg.Completion.TimeoutSecs+cfg.Embedder.TimeoutSecs) * time.Second
	model := tui.New(sessionAsker{rag: a.rag, session: session}, summary, timeout)
	_, err = tea.NewProgram(model, tea.WithAltScreen()).Run()
	return err
}
