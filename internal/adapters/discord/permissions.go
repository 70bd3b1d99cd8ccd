package discord

import (
	"slices"

	"github.com/bwmarrin/discordgo"

	"github.com/jose-valero/office-hours-bot/internal/domain"
)

var permTable = []struct {
	dom domain.Permission
	dg  int64
}{
	{domain.PermView, discordgo.PermissionViewChannel},
	{domain.PermConnect, discordgo.PermissionVoiceConnect},
	{domain.PermSpeak, discordgo.PermissionVoiceSpeak},
	{domain.PermStream, discordgo.PermissionVoiceStreamVideo},
	{domain.PermManageChannel, discordgo.PermissionManageChannels},
	{domain.PermManageRoles, discordgo.PermissionManageRoles},
	{domain.PermMoveMembers, discordgo.PermissionVoiceMoveMembers},
	{domain.PermMuteMembers, discordgo.PermissionVoiceMuteMembers},
	{domain.PermDeafenMembers, discordgo.PermissionVoiceDeafenMembers},
}

func toDiscordPerms(p domain.Permission) int64 {
	var out int64
	for _, e := range permTable {
		if p.Has(e.dom) {
			out |= e.dg
		}
	}
	return out
}

// fromDiscordPerms ignora los bits que el dominio no modela.
func fromDiscordPerms(v int64) domain.Permission {
	var out domain.Permission
	for _, e := range permTable {
		if v&e.dg == e.dg {
			out |= e.dom
		}
	}
	return out
}

func toDiscordOverwrite(ow domain.Overwrite) *discordgo.PermissionOverwrite {
	t := discordgo.PermissionOverwriteTypeRole
	if ow.Type == domain.SubjectMember {
		t = discordgo.PermissionOverwriteTypeMember
	}
	return &discordgo.PermissionOverwrite{
		ID:    ow.SubjectID,
		Type:  t,
		Allow: toDiscordPerms(ow.Allow),
		Deny:  toDiscordPerms(ow.Deny),
	}
}

func fromDiscordOverwrite(ow *discordgo.PermissionOverwrite) domain.Overwrite {
	t := domain.SubjectRole
	if ow.Type == discordgo.PermissionOverwriteTypeMember {
		t = domain.SubjectMember
	}
	return domain.Overwrite{
		SubjectID: ow.ID,
		Type:      t,
		Allow:     fromDiscordPerms(ow.Allow),
		Deny:      fromDiscordPerms(ow.Deny),
	}
}

// isAdmin: dueño del guild, bit Administrator en algún rol o rol listado
// en ADMIN_ROLE_IDS.
func isAdmin(s *discordgo.Session, guildID string, m *discordgo.Member, adminRoles []string) bool {
	if m == nil {
		return false
	}
	var ownerID string
	var roles []*discordgo.Role
	if g, _ := s.State.Guild(guildID); g != nil {
		ownerID = g.OwnerID
		roles = g.Roles
	}
	if len(roles) == 0 {
		roles, _ = s.GuildRoles(guildID)
	}
	return hasAdmin(ownerID, roles, m, adminRoles)
}

func hasAdmin(ownerID string, roles []*discordgo.Role, m *discordgo.Member, adminRoles []string) bool {
	if m.User != nil && ownerID != "" && m.User.ID == ownerID {
		return true
	}

	var perms int64
	for _, ro := range roles {
		if slices.Contains(m.Roles, ro.ID) {
			perms |= ro.Permissions
		}
	}
	if perms&discordgo.PermissionAdministrator != 0 {
		return true
	}

	for _, want := range adminRoles {
		if slices.Contains(m.Roles, want) {
			return true
		}
	}
	return false
}

func (r *Router) requireAdmin(s *discordgo.Session, ic *discordgo.InteractionCreate) bool {
	if isAdmin(s, ic.GuildID, ic.Member, r.adminRoleIDs) {
		return true
	}
	ReplyEphemeral(s, ic, "🔒 No tienes permisos para esta acción.")
	return false
}
