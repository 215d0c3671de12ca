package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"taskboard/api"
	"taskboard/auth"
	"taskboard/config"
	"taskboard/db"
	"taskboard/log"
	"taskboard/realtime"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Host a taskboard server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

func runServer() error {
	cfg := config.Get()

	database, err := db.Open(db.Config{Path: cfg.DatabasePath, LogQueries: cfg.DBLogQueries})
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}

	hub := realtime.NewHub()

	secret := cfg.TokenSecret
	if secret == "" {
		secret = auth.RandomSecret()
		log.Warn().Msg("no token secret configured, sessions will not survive a restart")
	}
	tokenTTL := time.Duration(cfg.TokenTTLDays) * 24 * time.Hour

	// Gin's own debug logging is replaced by the zerolog request logger
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(log.GinLogger())
	r.Use(gzip.Gzip(gzip.DefaultCompression))
	if cfg.IsDevelopment() {
		r.Use(corsMiddleware())
	}
	r.SetTrustedProxies(nil)

	api.SetupRoutes(r, api.NewHandlers(database, hub, secret, tokenTTL))

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().
			Str("addr", addr).
			Str("env", cfg.Env).
			Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	// Close realtime feeds first so connections drain quickly
	hub.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("server shutdown error")
	}

	if err := database.Close(); err != nil {
		log.Error().Err(err).Msg("database close error")
	}

	log.Info().Msg("server stopped")
	return nil
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
