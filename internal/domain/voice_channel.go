package domain

import "slices"

// VoiceChannel es la metadata persistida de un canal de voz del guild.
// Si QueueID está seteado el canal es punto de entrada de esa cola y nunca
// una sala de tutoría.
type VoiceChannel struct {
	ChannelID   string   `json:"channel_id"`
	Owner       string   `json:"owner,omitempty"`
	Managed     bool     `json:"managed"`
	Temporary   bool     `json:"temporary"`
	Locked      bool     `json:"locked"`
	Permitted   []string `json:"permitted,omitempty"`
	Supervisors []string `json:"supervisors,omitempty"`
	QueueID     string   `json:"queue_id,omitempty"`
}

func (v *VoiceChannel) IsQueueChannel() bool { return v.QueueID != "" }

func (v *VoiceChannel) IsPermitted(userID string) bool {
	return slices.Contains(v.Permitted, userID)
}

// Permit agrega userID a la allow-list; false si ya estaba.
func (v *VoiceChannel) Permit(userID string) bool {
	if v.IsPermitted(userID) {
		return false
	}
	v.Permitted = append(v.Permitted, userID)
	return true
}

// Revoke quita userID de la allow-list; false si no estaba.
func (v *VoiceChannel) Revoke(userID string) bool {
	i := slices.Index(v.Permitted, userID)
	if i < 0 {
		return false
	}
	v.Permitted = slices.Delete(v.Permitted, i, i+1)
	return true
}

// HasSupervisorRole reporta si alguno de roles supervisa el canal.
func (v *VoiceChannel) HasSupervisorRole(roles []string) bool {
	for _, r := range roles {
		if slices.Contains(v.Supervisors, r) {
			return true
		}
	}
	return false
}

func (v *VoiceChannel) Clone() *VoiceChannel {
	c := *v
	c.Permitted = slices.Clone(v.Permitted)
	c.Supervisors = slices.Clone(v.Supervisors)
	return &c
}

const (
	DefaultRoomName     = "{owner_name}'s room #{room_number}"
	DefaultRoomMaxUsers = 5
)

// RoomSpawner es la plantilla para crear salas desde una cola.
type RoomSpawner struct {
	Name        string      `json:"name,omitempty"`
	MaxUsers    int         `json:"max_users"`
	Locked      bool        `json:"locked"`
	Hidden      bool        `json:"hidden"`
	ParentID    string      `json:"parent_id,omitempty"`
	Supervisors []string    `json:"supervisors,omitempty"`
	Permitted   []string    `json:"permitted,omitempty"`
	Permissions []Overwrite `json:"permissions,omitempty"`
	Owner       string      `json:"owner,omitempty"`
}

func (r RoomSpawner) Clone() RoomSpawner {
	r.Supervisors = slices.Clone(r.Supervisors)
	r.Permitted = slices.Clone(r.Permitted)
	r.Permissions = slices.Clone(r.Permissions)
	return r
}
