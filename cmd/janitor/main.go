package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jose-valero/office-hours-bot/internal/infra/config"
	"github.com/jose-valero/office-hours-bot/internal/infra/storage"
)

func handler(ctx context.Context) (string, error) {
	cfg := config.Janitor()
	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel})).With("component", "janitor")

	pcfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return "", fmt.Errorf("parse: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return "", fmt.Errorf("pool: %w", err)
	}
	defer pool.Close()

	cctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	closed, err := storage.CloseStaleSessions(cctx, pool, cfg.SessionMaxAge)
	if err != nil {
		return "", err
	}
	purged, err := storage.PurgeInactiveRooms(cctx, pool, cfg.AuditRetention)
	if err != nil {
		return "", err
	}
	log.Info("maintenance done", "sessions_closed", closed, "rooms_purged", purged)
	return fmt.Sprintf("ok sessions=%d rooms=%d", closed, purged), nil
}

func main() { lambda.Start(handler) }
