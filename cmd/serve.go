package cmd

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github/itish2003/studybuddy/config"
	"github/itish2003/studybuddy/controller"
	"github/itish2003/studybuddy/services"
)

// watchedSessionID is the session the --watch directory is indexed into.
const watchedSessionID = "materials"

var flagServeWatch string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&flagServeWatch, "watch", "", "Directory of study materials to index and keep in sync")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(flagConfigPath)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, true)
	if err != nil {
		return err
	}
	defer a.Close()

	if flagServeWatch != "" {
		session := a.sessions.Pin(watchedSessionID)
		indexer := services.NewFileIndexingService(a.rag, a.loader, session)
		indexer.ScanAndIndexDirectory(ctx, flagServeWatch)
		go indexer.WatchDirectory(ctx, flagServeWatch)
		log.Printf("Materials in %s are served under %s: %s", flagServeWatch, controller.SessionHeader, watchedSessionID)
	}

	go a.sessions.RunExpiry(ctx, time.Duration(cfg.Server.SessionIdleMinutes)*time.Minute)

	ragController := controller.NewRAGController(a.rag, a.sessions, cfg.Loader.MaxBodyBytes)
	studyController := controller.NewStudyController(a.sessions, a.moods)
	router := controller.NewRouter(ragController, studyController)

	port := cfg.Server.Port
	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: time.Duration(cfg.Server.RequestTimeoutSecs) * time.Second,
	}

	log.Printf("Go Gin backend server starting on http://localhost:%s", port)
	log.Printf("Health check available at: http://localhost:%s/health", port)
	log.Printf("API endpoints:")
	log.Printf("  POST http://localhost:%s/api/v1/materials", port)
	log.Printf("  POST http://localhost:%s/api/v1/materials/pdf", port)
	log.Printf("  POST http://localhost:%s/api/v1/query", port)
	log.Printf("  GET  http://localhost:%s/api/v1/notes", port)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		log.Println("Shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
