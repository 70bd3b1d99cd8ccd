package config

import (
	"log"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	DatabaseURL  string
	DiscordToken string
	// guild donde se registran los comandos; vacío = comandos globales
	DiscordGuild string
	AdminRoleIDs []string
	LogLevel     slog.Level

	// opcional; vacío deshabilita el server de operación
	HTTPAddr string

	DefaultDisconnectTimeoutMs int64

	// janitor
	SessionMaxAge  time.Duration
	AuditRetention time.Duration
}

func get(k string, req bool) string {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" && req {
		log.Fatalf("faltante env %s", k)
	}
	return v
}

func getInt(k string, def int64) int64 {
	raw := get(k, false)
	if raw == "" {
		return def
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v < 0 {
		log.Fatalf("env %s inválida: %q", k, raw)
	}
	return v
}

// Load lee la config del bot. DISCORD_BOT_TOKEN es obligatorio.
func Load() Config {
	cfg := Janitor()
	cfg.DiscordToken = get("DISCORD_BOT_TOKEN", true)
	cfg.DiscordGuild = get("DISCORD_GUILD_ID", false)
	cfg.AdminRoleIDs = splitCSV(get("ADMIN_ROLE_IDS", false))
	cfg.DefaultDisconnectTimeoutMs = getInt("DEFAULT_DISCONNECT_TIMEOUT_MS", 0)
	cfg.HTTPAddr = get("HTTP_ADDR", false)
	return cfg
}

// Janitor lee sólo lo que necesita el lambda de mantenimiento.
func Janitor() Config {
	return Config{
		DatabaseURL:    get("DATABASE_URL", true),
		LogLevel:       ParseLevel(get("LOG_LEVEL", false)),
		SessionMaxAge:  time.Duration(getInt("SESSION_MAX_AGE_HOURS", 12)) * time.Hour,
		AuditRetention: time.Duration(getInt("AUDIT_RETENTION_DAYS", 30)) * 24 * time.Hour,
	}
}

// ParseLevel acepta debug|info|warn|error; cualquier otra cosa es info.
func ParseLevel(s string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return l
}

func splitCSV(raw string) []string {
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
