package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/desertthunder/chorus/internal/auth"
	"github.com/desertthunder/chorus/internal/repositories"
	"github.com/desertthunder/chorus/internal/server"
	"github.com/desertthunder/chorus/internal/services"
	"github.com/desertthunder/chorus/internal/shared"
	"github.com/desertthunder/chorus/internal/tasks"
	"github.com/urfave/cli/v3"
	"golang.org/x/time/rate"
)

const shutdownTimeout = 10 * time.Second

// Serve starts the HTTP API server and blocks until interrupted.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	config := r.loadConfig(cmd)

	if host := cmd.String("host"); host != "" {
		config.Server.Host = host
	}
	if port := cmd.Int("port"); port != 0 {
		config.Server.Port = port
	}

	issuer, err := auth.NewIssuer(config.Auth.Secret,
		time.Duration(config.Auth.TokenTTLDays)*24*time.Hour)
	if err != nil {
		return fmt.Errorf("failed to configure credential issuer: %w", err)
	}

	oauth, err := services.NewSpotifyOAuth(
		config.Credentials.Spotify.ClientID,
		config.Credentials.Spotify.ClientSecret,
		config.Credentials.Spotify.RedirectURI,
	)
	if err != nil {
		return fmt.Errorf("failed to configure spotify oauth: %w", err)
	}

	db, err := shared.NewDatabase(config.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	shared.ConfigureDatabase(db, config.Database.MaxOpenConns, config.Database.MaxIdleConns)
	if err := shared.RunMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	users := repositories.NewUserRepository(db)

	// A missing Gemini key disables generation; every other endpoint stays up.
	var llm services.TextGenerator
	if gemini, err := services.NewGeminiService(config.Credentials.Gemini.APIKey, config.Credentials.Gemini.Model); err != nil {
		r.logger.Warn("playlist generation disabled", "error", err)
	} else {
		llm = gemini
	}
	engine := tasks.NewGeneratorEngine(llm, r.logger)

	router := server.NewBasicRouter()
	router.Use(server.Logging(r.logger))
	if config.Server.RateLimit > 0 {
		router.Use(server.RateLimit(rate.NewLimiter(
			rate.Limit(config.Server.RateLimit), config.Server.RateBurst)))
	}

	// The login handshake sits outside the credential check.
	router.Handler(server.NewOAuthHandler(oauth, users, issuer, config.Server.FrontendURL, r.logger))

	router.Use(server.RequireAuth(issuer, nil))
	router.Handler(server.NewAPIHandler(engine, nil, nil, r.logger))

	httpServer := &http.Server{
		Addr:    config.Server.Addr(),
		Handler: router,
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		r.logger.Info("server listening", "addr", httpServer.Addr)
		serveErr <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	r.logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	return nil
}
