package domain

import "slices"

// Member es la vista mínima de un miembro del guild.
type Member struct {
	ID          string
	DisplayName string
	Roles       []string
	Admin       bool
}

func (m Member) HasAnyRole(roles []string) bool {
	for _, r := range m.Roles {
		if slices.Contains(roles, r) {
			return true
		}
	}
	return false
}

// Mention devuelve la mención de plataforma del miembro.
func (m Member) Mention() string { return "<@" + m.ID + ">" }

func MemberIDs(ms []Member) []string {
	out := make([]string, 0, len(ms))
	for _, m := range ms {
		out = append(out, m.ID)
	}
	return out
}
