package domain

// Permission es un set de permisos de canal independiente de la plataforma.
type Permission uint32

const (
	PermView Permission = 1 << iota
	PermConnect
	PermSpeak
	PermStream
	PermManageChannel
	PermManageRoles
	PermMoveMembers
	PermMuteMembers
	PermDeafenMembers
)

const (
	// PermsMember: lo que recibe un usuario permitido (y el ex-dueño).
	PermsMember = PermView | PermConnect | PermSpeak | PermStream
	// PermsSupervisor: roles con control elevado.
	PermsSupervisor = PermsMember | PermMoveMembers | PermMuteMembers | PermDeafenMembers
	// PermsOwner: control total del dueño de la sala.
	PermsOwner = PermsSupervisor | PermManageChannel | PermManageRoles
	// PermsLock se niega al rol por defecto cuando la sala está cerrada.
	PermsLock = PermConnect | PermSpeak
)

func (p Permission) Has(o Permission) bool { return p&o == o }

// SubjectType distingue overwrites de rol y de miembro.
type SubjectType int

const (
	SubjectRole SubjectType = iota
	SubjectMember
)

// Overwrite es un permission overwrite sobre un canal.
type Overwrite struct {
	SubjectID string      `json:"subject_id"`
	Type      SubjectType `json:"type"`
	Allow     Permission  `json:"allow"`
	Deny      Permission  `json:"deny"`
}

// ChannelSpec describe un canal de voz a crear.
type ChannelSpec struct {
	Name       string
	ParentID   string
	UserLimit  int
	Overwrites []Overwrite
}

// FindOverwrite busca el overwrite de un sujeto.
func FindOverwrite(ows []Overwrite, subjectID string) (Overwrite, bool) {
	for _, ow := range ows {
		if ow.SubjectID == subjectID {
			return ow, true
		}
	}
	return Overwrite{}, false
}
