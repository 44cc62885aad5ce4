package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github/itish2003/studybuddy/config"
	"github/itish2003/studybuddy/services"
)

var (
	flagAskText string
	flagAskURL  string
	flagAskPDF  string
	flagAskFile string
)

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Index one piece of study material and answer a question about it",
	Example: `  studybuddy ask --url https://en.wikipedia.org/wiki/France "What is the capital of France?"
  studybuddy ask --pdf notes.pdf "Summarise chapter two"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().StringVar(&flagAskText, "text", "", "Raw study text")
	askCmd.Flags().StringVar(&flagAskURL, "url", "", "Web page to fetch")
	askCmd.Flags().StringVar(&flagAskPDF, "pdf", "", "PDF file to read")
	askCmd.Flags().StringVar(&flagAskFile, "file", "", "Text, markdown or PDF file to read")
	askCmd.MarkFlagsMutuallyExclusive("text", "url", "pdf", "file")
	askCmd.MarkFlagsOneRequired("text", "url", "pdf", "file")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(flagConfigPath)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	a, err := newApp(ctx, cfg, false)
	if err != nil {
		return err
	}
	defer a.Close()

	docs, err := loadAskMaterial(ctx, a.loader)
	if err != nil {
		return err
	}

	session, _ := a.sessions.Resolve("")
	if _, err := a.rag.ProcessDocuments(ctx, session, docs); err != nil {
		if services.IsEmptyIndex(err) {
			return errors.New("no valid documents to index")
		}
		return err
	}

	answer, err := a.rag.Ask(ctx, session, strings.Join(args, " "))
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, answer.Text)
	if len(answer.RetrievedChunks) > 0 {
		fmt.Fprintln(out, "\nSources:")
		for _, rc := range answer.RetrievedChunks {
			fmt.Fprintf(out, "  [%.3f] %s #%d\n", rc.Score, rc.Chunk.Source, rc.Chunk.Index)
		}
	}
	return nil
}

func loadAskMaterial(ctx context.Context, loader *services.Loader) ([]services.Document, error) {
	switch {
	case flagAskText != "":
		return loader.Load(ctx, services.KindText, []byte(flagAskText))
	case flagAskURL != "":
		return loader.Load(ctx, services.KindURL, []byte(flagAskURL))
	case flagAskPDF != "":
		data, err := os.ReadFile(flagAskPDF)
		if err != nil {
			return nil, fmt.Errorf("read pdf: %w", err)
		}
		return loader.Load(ctx, services.KindPDF, data)
	default:
		return loader.LoadFile(ctx, flagAskFile)
	}
}

// loadSources loads each argument as a URL when it looks like one and as a
// file otherwise.
func loadSources(ctx context.Context, loader *services.Loader, sources []string) ([]services.Document, error) {
	var docs []services.Document
	for _, src := range sources {
		var (
			loaded []services.Document
			err    error
		)
		if strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://") {
			loaded, err = loader.Load(ctx, services.KindURL, []byte(src))
		} else {
			loaded, err = loader.LoadFile(ctx, src)
		}
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", src, err)
		}
		docs = append(docs, loaded...)
	}
	return docs, nil
}
