package cmd

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	chromago "github.com/amikos-tech/chroma-go/pkg/api/v2"
	"google.golang.org/genai"

	"github/itish2003/studybuddy/config"
	"github/itish2003/studybuddy/services"
	"github/itish2003/studybuddy/store"
)

// app is the fully wired pipeline shared by every subcommand.
type app struct {
	cfg      *config.AppConfig
	loader   *services.Loader
	rag      services.RAGService
	sessions *services.SessionManager
	moods    *services.MoodTracker
	history  store.HistoryStore

	closers []func()
}

// newApp builds every component named in cfg. persistHistory=false keeps
// one-shot commands from touching the configured history backend.
func newApp(ctx context.Context, cfg *config.AppConfig, persistHistory bool) (*app, error) {
	a := &app{cfg: cfg}

	logCloser, err := config.SetupLogging(cfg.Logging)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func() { logCloser.Close() })

	services.SetPDFLicense(cfg.PDFLicenseKey)

	a.loader = services.NewLoader(
		&http.Client{Timeout: time.Duration(cfg.Loader.FetchTimeoutSecs) * time.Second},
		cfg.Loader.MaxBodyBytes,
	)
	chunker := services.NewChunker(cfg.Retrieval.Splitter, cfg.Retrieval.ChunkSize, *cfg.Retrieval.ChunkOverlap)

	var geminiClient *genai.Client
	if cfg.Embedder.Type == "gemini" || cfg.Completion.Type == "gemini" {
		geminiClient, err = genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  cfg.GeminiAPIKey,
			Backend: genai.BackendGeminiAPI,
		})
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to create Gemini client: %w. Make sure GEMINI_API_KEY is set", err)
		}
		log.Println("Successfully connected to Google Gemini.")
	}

	embedder, err := newEmbedder(cfg.Embedder, geminiClient)
	if err != nil {
		a.Close()
		return nil, err
	}

	backend, err := newCompletionBackend(cfg.Completion, geminiClient)
	if err != nil {
		a.Close()
		return nil, err
	}
	opts := services.CompletionOptions{
		MaxTokens:   cfg.Completion.MaxTokens,
		Temperature: float32(*cfg.Completion.Temperature),
		TopP:        float32(*cfg.Completion.TopP),
		Stop:        cfg.Completion.Stop,
	}
	synthesizer := services.NewAnswerSynthesizer(backend, opts)

	newIndex, err := a.indexFactory(cfg.Index)
	if err != nil {
		a.Close()
		return nil, err
	}

	if persistHistory {
		a.history, err = openHistory(ctx, cfg.History)
		if err != nil {
			a.Close()
			return nil, err
		}
	} else {
		a.history = store.NewMemoryStore()
	}
	a.closers = append(a.closers, func() {
		if err := a.history.Close(); err != nil {
			log.Printf("Warning: Failed to close history store: %v", err)
		}
	})

	a.rag = services.NewRAGService(a.loader, chunker, embedder, synthesizer, cfg.Retrieval.Collection, cfg.Retrieval.TopK)
	a.sessions = services.NewSessionManager(newIndex, a.history)
	a.moods = services.NewMoodTracker(a.history, time.Duration(cfg.Mood.WindowMinutes)*time.Minute, cfg.Mood.ThresholdPercent)
	log.Printf("Pipeline ready: embedder=%s completion=%s index=%s history=%s",
		embedder.ModelID(), backend.Name(), cfg.Index.Type, cfg.History.Type)
	return a, nil
}

// Close releases resources in reverse order of creation.
func (a *app) Close() {
	if a.sessions != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		a.sessions.Close(ctx)
		cancel()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func newEmbedder(cfg config.EmbedderConfig, geminiClient *genai.Client) (services.Embedder, error) {
	var backend services.TextEmbedder
	switch cfg.Type {
	case "hash":
		backend = services.NewHashEmbedder(cfg.Dimension)
	case "ollama":
		client := &http.Client{Timeout: time.Duration(cfg.TimeoutSecs) * time.Second}
		backend = services.NewOllamaEmbedder(client, cfg.BaseURL, cfg.Model)
	case "openai":
		e, err := services.NewOpenAIEmbedder(cfg.APIKey, cfg.BaseURL, cfg.Model)
		if err != nil {
			return nil, err
		}
		backend = e
	case "gemini":
		backend = services.NewGeminiEmbedder(geminiClient, cfg.Model)
	default:
		return nil, fmt.Errorf("unknown embedder type %q", cfg.Type)
	}
	return services.NewEmbedder(backend), nil
}

func newCompletionBackend(cfg config.CompletionConfig, geminiClient *genai.Client) (services.CompletionBackend, error) {
	switch cfg.Type {
	case "http":
		adapter, err := services.AdapterFor(cfg.ResponseShape)
		if err != nil {
			return nil, err
		}
		client := &http.Client{Timeout: time.Duration(cfg.TimeoutSecs) * time.Second}
		return services.NewHTTPCompletionBackend(client, cfg.BaseURL, cfg.Path, cfg.Model, cfg.APIKey, adapter), nil
	case "gemini":
		return services.NewGeminiCompletionBackend(geminiClient, cfg.Model), nil
	default:
		return nil, fmt.Errorf("unknown completion type %q", cfg.Type)
	}
}

func (a *app) indexFactory(cfg config.IndexConfig) (services.IndexFactory, error) {
	switch cfg.Type {
	case "memory":
		return func() services.VectorIndex { return services.NewMemoryIndex() }, nil
	case "chroma":
		chromaClient, err := chromago.NewHTTPClient(chromago.WithBaseURL(cfg.ChromaURL))
		if err != nil {
			return nil, fmt.Errorf("failed to create chroma client: %w", err)
		}
		a.closers = append(a.closers, func() {
			if err := chromaClient.Close(); err != nil {
				log.Printf("Warning: Failed to close chroma client: %v", err)
			}
		})
		log.Printf("Using Chroma at %s", cfg.ChromaURL)
		return func() services.VectorIndex { return services.NewChromaIndex(chromaClient) }, nil
	default:
		return nil, fmt.Errorf("unknown index type %q", cfg.Type)
	}
}

func openHistory(ctx context.Context, cfg config.HistoryConfig) (store.HistoryStore, error) {
	switch cfg.Type {
	case "sqlite":
		return store.OpenSQLite(cfg.Path)
	case "mongo":
		if cfg.MongoURI == "" {
			return nil, fmt.Errorf("mongo history store needs MONGODB_URI")
		}
		connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		return store.OpenMongo(connectCtx, cfg.MongoURI, cfg.Database, cfg.Collection)
	case "memory", "none":
		return store.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown history type %q", cfg.Type)
	}
}
