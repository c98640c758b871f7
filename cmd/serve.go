package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kozaktomas/rollcall/internal/config"
	"github.com/kozaktomas/rollcall/internal/extractor"
	"github.com/kozaktomas/rollcall/internal/recognition"
	"github.com/kozaktomas/rollcall/internal/web"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the attendance server",
	Long: `Start the Rollcall web server.
The server accepts camera frames from kiosks, matches faces against enrolled
students and records attendance for the period scheduled right now. It also
serves the admin API and the embedded kiosk frontend.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	if cfg.Auth.SessionSecret == "" {
		return errors.New("SESSION_SECRET environment variable is required")
	}
	if cfg.Extractor.URL == "" {
		return errors.New("EXTRACTOR_URL environment variable is required")
	}

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	if cfg.Database.UsePostgres() {
		fmt.Println("Using PostgreSQL backend")
	} else {
		fmt.Printf("Using SQLite backend (%s)\n", cfg.Database.SQLitePath)
	}

	client := extractor.NewClient(cfg.Extractor.URL, time.Duration(cfg.Extractor.TimeoutSeconds)*time.Second)

	// The extractor may still be starting up. Serve anyway; scans fail with
	// a clear error until it comes up.
	probeCtx, probeCancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := client.Health(probeCtx); err != nil {
		fmt.Printf("Warning: face extractor not reachable at %s: %v\n", cfg.Extractor.URL, err)
	}
	probeCancel()

	engine := recognition.NewEngine(st, client, recognition.Config{
		CacheTTL:       time.Duration(cfg.Engine.CacheTTLSeconds) * time.Second,
		CooldownWindow: time.Duration(cfg.Engine.CooldownSeconds) * time.Second,
		IndexThreshold: cfg.Engine.IndexThreshold,
		ReviewMaxPx:    cfg.Engine.ReviewImageMaxPx,
	})

	server := web.NewServer(cfg, st, engine)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nShutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			fmt.Printf("Error during shutdown: %v\n", err)
		}
	}()

	host := cfg.Server.Host
	if host == "" {
		host = "0.0.0.0"
	}
	fmt.Printf("Starting Rollcall on http://%s:%d\n", host, cfg.Server.Port)
	fmt.Println("Press Ctrl+C to stop")

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}
