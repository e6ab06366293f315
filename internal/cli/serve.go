package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kotosync/kotosync/internal/server"
	"github.com/kotosync/kotosync/internal/store"
)

var serveAddr string

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the synced sentence collection over HTTP",
	Long: `Serve exposes the local store over HTTP:

  GET /            random sentence; filters: c (comma-separated categories),
                   min_length, max_length; encode=text for a plain-text body
  GET /{uuid}      direct lookup
  GET /stats       request counts over sliding 1m/1h/24h windows

Example:
  kotosync serve
  kotosync serve --addr 0.0.0.0:8080`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default 127.0.0.1:8080)")
	serveCmd.Flags().StringVar(&dbPath, "db", "", "SQLite database path")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := loadConfig()
	if serveAddr != "" {
		cfg.Serve.Addr = serveAddr
	}

	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	count, err := st.Count(ctx)
	if err != nil {
		return fmt.Errorf("count sentences: %w", err)
	}
	if count == 0 {
		fmt.Fprintln(os.Stderr, "store is empty; run 'kotosync sync' first")
	}

	srv := &http.Server{
		Addr:              cfg.Serve.Addr,
		Handler:           server.New(st).Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		fmt.Printf("serving %d sentences at http://%s\n", count, cfg.Serve.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
