package service

import (
	"context"

	"github.com/jose-valero/office-hours-bot/internal/domain"
)

// Lo implementa internal/infra/storage.GuildRepo
type GuildRepo interface {
	Load(ctx context.Context, guildID string) (*domain.Guild, error)
	// Save devuelve storage.ErrConflict si la versión cambió desde Load.
	Save(ctx context.Context, g *domain.Guild) error
}

// Lo implementa internal/infra/storage.RoomRepo
type RoomRepo interface {
	Find(ctx context.Context, roomID string) (*domain.Room, error)
	Create(ctx context.Context, room *domain.Room) error
	Save(ctx context.Context, room *domain.Room) error
}

// Lo implementa internal/infra/storage.SessionRepo
type SessionRepo interface {
	Create(ctx context.Context, s *domain.Session) error
	FindActive(ctx context.Context, guildID, userID string) (*domain.Session, error)
	Save(ctx context.Context, s *domain.Session) error
}

// Gateway son los efectos sobre la plataforma de voz.
// Lo implementa internal/adapters/discord.Gateway
type Gateway interface {
	// MoveMember reubica al miembro; channelID nil lo desconecta.
	MoveMember(ctx context.Context, guildID, userID string, channelID *string) error
	CreateVoiceChannel(ctx context.Context, guildID string, spec domain.ChannelSpec) (string, error)
	DeleteChannel(ctx context.Context, channelID string) error
	EditPermission(ctx context.Context, channelID string, ow domain.Overwrite) error
	DeletePermission(ctx context.Context, channelID, subjectID string) error
	ChannelOverwrites(ctx context.Context, channelID string) ([]domain.Overwrite, error)
	// Occupants devuelve los ids de usuarios conectados al canal.
	Occupants(ctx context.Context, guildID, channelID string) ([]string, error)
	// VoiceChannelOf devuelve "" si el usuario no está en voz.
	VoiceChannelOf(ctx context.Context, guildID, userID string) (string, error)
	// Member devuelve domain.ErrUserNotInGuild si no es miembro.
	Member(ctx context.Context, guildID, userID string) (domain.Member, error)
}

// Notification es un mensaje ya compuesto para un usuario; el adapter lo
// manda por DM y lo replica en los canales de info suscritos al evento.
// Con Event == EventError, Err lleva la condición y el adapter arma el texto.
type Notification struct {
	GuildID string
	UserID  string
	Event   domain.QueueEvent
	Queue   *domain.Queue
	Content string
	Err     error
}

// Lo implementa internal/adapters/discord.Notifier
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}
