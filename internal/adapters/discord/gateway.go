package discord

import (
	"context"
	"errors"
	"log/slog"

	"github.com/bwmarrin/discordgo"

	"github.com/jose-valero/office-hours-bot/internal/app/service"
	"github.com/jose-valero/office-hours-bot/internal/domain"
)

var _ service.Gateway = (*Gateway)(nil)

// Gateway implementa los efectos de voz sobre discordgo. Lecturas primero
// del state cache, REST como fallback.
type Gateway struct {
	s          *discordgo.Session
	adminRoles []string
	log        *slog.Logger
}

func NewGateway(s *discordgo.Session, adminRoles []string, log *slog.Logger) *Gateway {
	if log == nil {
		log = slog.Default()
	}
	return &Gateway{s: s, adminRoles: adminRoles, log: log.With("component", "gateway")}
}

func (g *Gateway) MoveMember(ctx context.Context, guildID, userID string, channelID *string) error {
	return g.s.GuildMemberMove(guildID, userID, channelID, discordgo.WithContext(ctx))
}

func (g *Gateway) CreateVoiceChannel(ctx context.Context, guildID string, spec domain.ChannelSpec) (string, error) {
	ows := make([]*discordgo.PermissionOverwrite, 0, len(spec.Overwrites))
	for _, ow := range spec.Overwrites {
		ows = append(ows, toDiscordOverwrite(ow))
	}
	ch, err := g.s.GuildChannelCreateComplex(guildID, discordgo.GuildChannelCreateData{
		Name:                 spec.Name,
		Type:                 discordgo.ChannelTypeGuildVoice,
		UserLimit:            spec.UserLimit,
		ParentID:             spec.ParentID,
		PermissionOverwrites: ows,
	}, discordgo.WithContext(ctx))
	if err != nil {
		return "", err
	}
	_ = g.s.State.ChannelAdd(ch)
	return ch.ID, nil
}

func (g *Gateway) DeleteChannel(ctx context.Context, channelID string) error {
	_, err := g.s.ChannelDelete(channelID, discordgo.WithContext(ctx))
	return err
}

func (g *Gateway) EditPermission(ctx context.Context, channelID string, ow domain.Overwrite) error {
	d := toDiscordOverwrite(ow)
	return g.s.ChannelPermissionSet(channelID, d.ID, d.Type, d.Allow, d.Deny, discordgo.WithContext(ctx))
}

func (g *Gateway) DeletePermission(ctx context.Context, channelID, subjectID string) error {
	return g.s.ChannelPermissionDelete(channelID, subjectID, discordgo.WithContext(ctx))
}

// ChannelOverwrites va siempre por REST: el cache puede no haber visto
// todavía un ChannelUpdate de una edición propia.
func (g *Gateway) ChannelOverwrites(ctx context.Context, channelID string) ([]domain.Overwrite, error) {
	ch, err := g.s.Channel(channelID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, err
	}
	out := make([]domain.Overwrite, 0, len(ch.PermissionOverwrites))
	for _, ow := range ch.PermissionOverwrites {
		out = append(out, fromDiscordOverwrite(ow))
	}
	return out, nil
}

func (g *Gateway) Occupants(_ context.Context, guildID, channelID string) ([]string, error) {
	guild, err := g.s.State.Guild(guildID)
	if err != nil {
		return nil, err
	}
	g.s.State.RLock()
	defer g.s.State.RUnlock()
	var out []string
	for _, vs := range guild.VoiceStates {
		if vs.ChannelID == channelID {
			out = append(out, vs.UserID)
		}
	}
	return out, nil
}

func (g *Gateway) VoiceChannelOf(_ context.Context, guildID, userID string) (string, error) {
	vs, err := g.s.State.VoiceState(guildID, userID)
	if errors.Is(err, discordgo.ErrStateNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return vs.ChannelID, nil
}

func (g *Gateway) Member(ctx context.Context, guildID, userID string) (domain.Member, error) {
	m, err := g.s.State.Member(guildID, userID)
	if err != nil || m == nil {
		g.log.Debug("member cache miss", "guild", guildID, "user", userID)
		m, err = g.s.GuildMember(guildID, userID, discordgo.WithContext(ctx))
		if isUnknownMember(err) {
			return domain.Member{}, domain.NewError(domain.KindUserNotInGuild, userID)
		}
		if err != nil {
			return domain.Member{}, err
		}
		_ = g.s.State.MemberAdd(m)
	}
	return toMember(g.s, guildID, m, g.adminRoles), nil
}

func isUnknownMember(err error) bool {
	var re *discordgo.RESTError
	return errors.As(err, &re) && re.Message != nil && re.Message.Code == discordgo.ErrCodeUnknownMember
}

// toMember arma la vista de dominio. m.GuildID puede venir vacío desde REST.
func toMember(s *discordgo.Session, guildID string, m *discordgo.Member, adminRoles []string) domain.Member {
	out := domain.Member{Roles: m.Roles}
	if m.User != nil {
		out.ID = m.User.ID
	}
	out.DisplayName = displayName(m)
	out.Admin = isAdmin(s, guildID, m, adminRoles)
	return out
}

func displayName(m *discordgo.Member) string {
	if m.Nick != "" {
		return m.Nick
	}
	if m.User == nil {
		return ""
	}
	if m.User.GlobalName != "" {
		return m.User.GlobalName
	}
	return m.User.Username
}
