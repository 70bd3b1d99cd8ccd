package service

import (
	"context"
	"log/slog"
	"slices"
	"strconv"

	"github.com/jose-valero/office-hours-bot/internal/domain"
	"github.com/jose-valero/office-hours-bot/internal/infra/clock"
)

// RoomManager provisiona salas efímeras y maneja sus permisos.
// El cierre (borrado del canal vacío) lo detecta sólo el PresenceRouter.
type RoomManager struct {
	guilds GuildRepo
	rooms  RoomRepo
	gw     Gateway
	clock  clock.Clock
	log    *slog.Logger
}

func NewRoomManager(guilds GuildRepo, rooms RoomRepo, gw Gateway, opts ...Option) *RoomManager {
	o := buildOptions(opts)
	return &RoomManager{
		guilds: guilds,
		rooms:  rooms,
		gw:     gw,
		clock:  o.clock,
		log:    o.logger.With("component", "rooms"),
	}
}

// GetTemporaryVoiceChannel resuelve el canal de voz actual del miembro.
func (m *RoomManager) GetTemporaryVoiceChannel(ctx context.Context, guildID, userID string) (*domain.VoiceChannel, error) {
	chID, err := m.gw.VoiceChannelOf(ctx, guildID, userID)
	if err != nil {
		return nil, err
	}
	if chID == "" {
		return nil, domain.NewError(domain.KindNotInVoiceChannel, userID)
	}
	g, err := m.guilds.Load(ctx, guildID)
	if err != nil {
		return nil, err
	}
	rec := g.VoiceChannel(chID)
	if rec == nil {
		return nil, domain.NewError(domain.KindNotInVoiceChannel, userID)
	}
	if !rec.Temporary {
		return nil, domain.NewError(domain.KindChannelNotTemporary, chID)
	}
	return rec.Clone(), nil
}

// Authorize deja pasar al dueño, a roles supervisores y a admins.
func (m *RoomManager) Authorize(rec *domain.VoiceChannel, member domain.Member) error {
	switch {
	case member.Admin:
		return nil
	case rec.Owner == member.ID:
		return nil
	case rec.HasSupervisorRole(member.Roles):
		return nil
	}
	return domain.Unauthorized("only the room owner or a supervisor can do that")
}

// CreateTutoringVoiceChannel crea la sala del tutor con sus alumnos.
// Usa el RoomSpawner de la cola si existe, si no uno ad-hoc: dueño el tutor,
// supervisores los del canal de la cola, cerrada y oculta, 5 lugares.
func (m *RoomManager) CreateTutoringVoiceChannel(ctx context.Context, guildID string, q *domain.Queue, tutor domain.Member, students []domain.Member, roomNumber int) (*domain.VoiceChannel, error) {
	g, err := m.guilds.Load(ctx, guildID)
	if err != nil {
		return nil, err
	}
	spawner := resolveSpawner(q, g.QueueChannel(q.ID), tutor, students)

	nameTpl := spawner.Name
	if nameTpl == "" {
		nameTpl = domain.DefaultRoomName
	}
	name := domain.Interpolate(nameTpl, map[string]string{
		"owner_name":  tutor.DisplayName,
		"owner_id":    tutor.ID,
		"max_users":   strconv.Itoa(spawner.MaxUsers),
		"room_number": strconv.Itoa(roomNumber),
	})

	chID, err := m.gw.CreateVoiceChannel(ctx, guildID, domain.ChannelSpec{
		Name:       name,
		ParentID:   spawner.ParentID,
		UserLimit:  spawner.MaxUsers,
		Overwrites: roomOverwrites(guildID, spawner),
	})
	if err != nil {
		return nil, &domain.Error{Kind: domain.KindChannelCouldNotBeCreated, Subject: name, Err: err}
	}

	rec := &domain.VoiceChannel{
		ChannelID:   chID,
		Owner:       tutor.ID,
		Managed:     true,
		Temporary:   true,
		Locked:      spawner.Locked,
		Permitted:   slices.Clone(spawner.Permitted),
		Supervisors: slices.Clone(spawner.Supervisors),
	}
	_, err = updateGuild(ctx, m.guilds, guildID, func(g *domain.Guild) error {
		if existing := g.VoiceChannel(chID); existing != nil {
			*existing = *rec.Clone()
			return nil
		}
		g.VoiceChannels = append(g.VoiceChannels, rec.Clone())
		return nil
	})
	if err != nil {
		// sin registro el canal quedaría huérfano
		m.rollbackRoom(ctx, guildID, chID, false)
		return nil, err
	}

	now := m.clock.Now()
	room := domain.NewRoom(guildID, chID, now)
	room.Append(domain.RoomEvent{Emitter: tutor.ID, Kind: domain.RoomCreated, Reason: "queue:" + q.Name, At: now.UTC()})
	if err := m.rooms.Create(ctx, room); err != nil {
		// nadie va a entrar a la sala, así que el router nunca la borraría
		m.rollbackRoom(ctx, guildID, chID, true)
		return nil, err
	}
	m.log.Info("room created", "guild", guildID, "room", chID, "owner", tutor.ID, "students", len(students))
	return rec, nil
}

// rollbackRoom borra el canal recién creado y, si dropRecord, su registro
// en el guild. Las fallas sólo se loguean.
func (m *RoomManager) rollbackRoom(ctx context.Context, guildID, chID string, dropRecord bool) {
	if err := m.gw.DeleteChannel(ctx, chID); err != nil {
		m.log.Warn("rollback channel delete failed", "channel", chID, "err", err)
	}
	if !dropRecord {
		return
	}
	_, err := updateGuild(ctx, m.guilds, guildID, func(g *domain.Guild) error {
		n := len(g.VoiceChannels)
		g.VoiceChannels = slices.DeleteFunc(g.VoiceChannels, func(v *domain.VoiceChannel) bool { return v.ChannelID == chID })
		if len(g.VoiceChannels) == n {
			return errSkipSave
		}
		return nil
	})
	if err != nil {
		m.log.Warn("rollback room record failed", "guild", guildID, "room", chID, "err", err)
	}
}

func resolveSpawner(q *domain.Queue, queueChannel *domain.VoiceChannel, tutor domain.Member, students []domain.Member) domain.RoomSpawner {
	var supervisors []string
	if queueChannel != nil {
		supervisors = queueChannel.Supervisors
	}

	var sp domain.RoomSpawner
	if q.RoomSpawner != nil {
		sp = q.RoomSpawner.Clone()
		if len(sp.Supervisors) == 0 {
			sp.Supervisors = slices.Clone(supervisors)
		}
		if sp.MaxUsers <= 0 {
			sp.MaxUsers = domain.DefaultRoomMaxUsers
		}
	} else {
		sp = domain.RoomSpawner{
			Name:        domain.DefaultRoomName,
			MaxUsers:    domain.DefaultRoomMaxUsers,
			Locked:      true,
			Hidden:      true,
			Supervisors: slices.Clone(supervisors),
		}
	}
	sp.Owner = tutor.ID
	for _, st := range students {
		if st.ID != tutor.ID && !slices.Contains(sp.Permitted, st.ID) {
			sp.Permitted = append(sp.Permitted, st.ID)
		}
	}
	return sp
}

// roomOverwrites: dueño con control total, supervisores elevados, un allow
// por alumno, y denies al rol por defecto según locked/hidden.
func roomOverwrites(guildID string, sp domain.RoomSpawner) []domain.Overwrite {
	ows := []domain.Overwrite{{SubjectID: sp.Owner, Type: domain.SubjectMember, Allow: domain.PermsOwner}}
	for _, role := range sp.Supervisors {
		ows = append(ows, domain.Overwrite{SubjectID: role, Type: domain.SubjectRole, Allow: domain.PermsSupervisor})
	}
	for _, uid := range sp.Permitted {
		ows = append(ows, domain.Overwrite{SubjectID: uid, Type: domain.SubjectMember, Allow: domain.PermsMember})
	}

	var deny domain.Permission
	if sp.Locked {
		deny |= domain.PermsLock
	}
	if sp.Hidden {
		deny |= domain.PermView
	}
	if deny != 0 {
		ows = append(ows, domain.Overwrite{SubjectID: guildID, Type: domain.SubjectRole, Deny: deny})
	}
	return append(ows, sp.Permissions...)
}

// MoveMembersToRoom mueve a cada miembro a la sala. Una falla individual se
// loguea y se sigue; hay un evento de auditoría por intento y un solo save.
func (m *RoomManager) MoveMembersToRoom(ctx context.Context, guildID string, members []string, roomID, initiator string, q *domain.Queue) ([]string, error) {
	reason := ""
	if q != nil {
		reason = "queue:" + q.Name
	}
	var (
		moved  []string
		events []domain.RoomEvent
	)
	target := roomID
	for _, uid := range members {
		if err := m.gw.MoveMember(ctx, guildID, uid, &target); err != nil {
			m.log.Warn("move member failed", "guild", guildID, "room", roomID, "user", uid, "err", err)
		} else {
			moved = append(moved, uid)
		}
		events = append(events, domain.RoomEvent{
			Emitter: initiator,
			Kind:    domain.RoomMoveMember,
			Target:  uid,
			Reason:  reason,
			At:      m.clock.Now().UTC(),
		})
	}
	if err := m.recordEvents(ctx, guildID, roomID, events...); err != nil {
		return moved, err
	}
	return moved, nil
}

// KickMemberFromRoom desconecta al miembro si está en la sala.
func (m *RoomManager) KickMemberFromRoom(ctx context.Context, guildID, userID, roomID, initiator string) error {
	chID, err := m.gw.VoiceChannelOf(ctx, guildID, userID)
	if err != nil {
		return err
	}
	if chID != roomID {
		return domain.NewError(domain.KindNotInVoiceChannel, userID)
	}
	if err := m.gw.MoveMember(ctx, guildID, userID, nil); err != nil {
		return &domain.Error{Kind: domain.KindCouldNotKickUser, Subject: userID, Err: err}
	}
	return m.recordEvents(ctx, guildID, roomID, m.event(initiator, domain.RoomKickMember, userID))
}

// KickAndRevoke es el kick de un dueño: desconecta al miembro y le quita
// el acceso para que no pueda volver a entrar.
func (m *RoomManager) KickAndRevoke(ctx context.Context, guildID, userID, roomID, initiator string) error {
	if err := m.KickMemberFromRoom(ctx, guildID, userID, roomID, initiator); err != nil {
		return err
	}
	return m.RevokeMemberAccess(ctx, guildID, roomID, userID, initiator)
}

// KickMembersFromRoom desconecta a todos menos al iniciador. Intenta con
// todos y si alguno falló devuelve CouldNotKickUser con el primero.
func (m *RoomManager) KickMembersFromRoom(ctx context.Context, guildID, roomID, initiator string) ([]string, error) {
	occupants, err := m.gw.Occupants(ctx, guildID, roomID)
	if err != nil {
		return nil, err
	}
	var (
		kicked   []string
		events   []domain.RoomEvent
		firstErr *domain.Error
	)
	for _, uid := range occupants {
		if uid == initiator {
			continue
		}
		if err := m.gw.MoveMember(ctx, guildID, uid, nil); err != nil {
			m.log.Warn("kick member failed", "guild", guildID, "room", roomID, "user", uid, "err", err)
			if firstErr == nil {
				firstErr = &domain.Error{Kind: domain.KindCouldNotKickUser, Subject: uid, Err: err}
			}
			continue
		}
		kicked = append(kicked, uid)
		events = append(events, m.event(initiator, domain.RoomKickMember, uid))
	}
	if len(events) > 0 {
		if err := m.recordEvents(ctx, guildID, roomID, events...); err != nil {
			return kicked, err
		}
	}
	if firstErr != nil {
		return kicked, firstErr
	}
	return kicked, nil
}

// LockRoom niega connect+speak al rol por defecto.
func (m *RoomManager) LockRoom(ctx context.Context, guildID, roomID, initiator string) error {
	rec, err := m.record(ctx, guildID, roomID)
	if err != nil {
		return err
	}
	if rec.Locked {
		return domain.NewError(domain.KindRoomAlreadyLocked, roomID)
	}
	return m.setLocked(ctx, guildID, roomID, initiator, true)
}

func (m *RoomManager) UnlockRoom(ctx context.Context, guildID, roomID, initiator string) error {
	if _, err := m.record(ctx, guildID, roomID); err != nil {
		return err
	}
	return m.setLocked(ctx, guildID, roomID, initiator, false)
}

func (m *RoomManager) setLocked(ctx context.Context, guildID, roomID, initiator string, locked bool) error {
	kind := domain.RoomUnlock
	add, remove := domain.Permission(0), domain.PermsLock
	if locked {
		kind = domain.RoomLock
		add, remove = domain.PermsLock, 0
	}
	if err := m.editDefaultRole(ctx, guildID, roomID, add, remove); err != nil {
		return err
	}
	_, err := updateGuild(ctx, m.guilds, guildID, func(g *domain.Guild) error {
		rec := g.VoiceChannel(roomID)
		if rec == nil {
			return domain.NewError(domain.KindNotInVoiceChannel, roomID)
		}
		if rec.Locked == locked {
			return errSkipSave
		}
		rec.Locked = locked
		return nil
	})
	if err != nil {
		return err
	}
	return m.recordEvents(ctx, guildID, roomID, m.event(initiator, kind, ""))
}

// HideRoom niega view al rol por defecto. La visibilidad no se persiste:
// se deriva del overwrite (IsHidden).
func (m *RoomManager) HideRoom(ctx context.Context, guildID, roomID, initiator string) error {
	if err := m.editDefaultRole(ctx, guildID, roomID, domain.PermView, 0); err != nil {
		return err
	}
	return m.recordEvents(ctx, guildID, roomID, m.event(initiator, domain.RoomHide, ""))
}

func (m *RoomManager) ShowRoom(ctx context.Context, guildID, roomID, initiator string) error {
	if err := m.editDefaultRole(ctx, guildID, roomID, 0, domain.PermView); err != nil {
		return err
	}
	return m.recordEvents(ctx, guildID, roomID, m.event(initiator, domain.RoomShow, ""))
}

func (m *RoomManager) IsHidden(ctx context.Context, guildID, roomID string) (bool, error) {
	ows, err := m.gw.ChannelOverwrites(ctx, roomID)
	if err != nil {
		return false, err
	}
	ow, ok := domain.FindOverwrite(ows, guildID)
	return ok && ow.Deny.Has(domain.PermView), nil
}

// editDefaultRole suma add y quita remove de los denies del rol @everyone
// (id == guildID), respetando el resto del overwrite.
func (m *RoomManager) editDefaultRole(ctx context.Context, guildID, roomID string, add, remove domain.Permission) error {
	ows, err := m.gw.ChannelOverwrites(ctx, roomID)
	if err != nil {
		return err
	}
	ow, ok := domain.FindOverwrite(ows, guildID)
	if !ok {
		ow = domain.Overwrite{SubjectID: guildID, Type: domain.SubjectRole}
	}
	ow.Deny = (ow.Deny | add) &^ remove
	ow.Allow &^= add
	if ow.Allow == 0 && ow.Deny == 0 {
		if !ok {
			return nil
		}
		return m.gw.DeletePermission(ctx, roomID, guildID)
	}
	return m.gw.EditPermission(ctx, roomID, ow)
}

// PermitMemberToJoinRoom agrega al usuario a la allow-list (idempotente) y
// le da view+connect+speak.
func (m *RoomManager) PermitMemberToJoinRoom(ctx context.Context, guildID, roomID, userID, initiator string) error {
	if err := m.gw.EditPermission(ctx, roomID, domain.Overwrite{SubjectID: userID, Type: domain.SubjectMember, Allow: domain.PermsMember}); err != nil {
		return &domain.Error{Kind: domain.KindCouldNotPermitUser, Subject: userID, Err: err}
	}
	added := false
	_, err := updateGuild(ctx, m.guilds, guildID, func(g *domain.Guild) error {
		rec := g.VoiceChannel(roomID)
		if rec == nil {
			return domain.NewError(domain.KindNotInVoiceChannel, roomID)
		}
		added = rec.Permit(userID)
		if !added {
			return errSkipSave
		}
		return nil
	})
	if err != nil || !added {
		return err
	}
	return m.recordEvents(ctx, guildID, roomID, m.event(initiator, domain.RoomPermitMember, userID))
}

// RevokeMemberAccess es la revocación tras un kick: sale de la allow-list
// y se borra su overwrite.
func (m *RoomManager) RevokeMemberAccess(ctx context.Context, guildID, roomID, userID, initiator string) error {
	removed := false
	_, err := updateGuild(ctx, m.guilds, guildID, func(g *domain.Guild) error {
		rec := g.VoiceChannel(roomID)
		if rec == nil {
			return domain.NewError(domain.KindNotInVoiceChannel, roomID)
		}
		removed = rec.Revoke(userID)
		if !removed {
			return errSkipSave
		}
		return nil
	})
	if err != nil {
		return err
	}
	if err := m.gw.DeletePermission(ctx, roomID, userID); err != nil {
		return &domain.Error{Kind: domain.KindCouldNotPermitUser, Subject: userID, Err: err}
	}
	if !removed {
		return nil
	}
	return m.recordEvents(ctx, guildID, roomID, m.event(initiator, domain.RoomRevokeMember, userID))
}

// TransferRoomOwnership pasa la sala a newOwner. El dueño anterior queda
// como permitido (baja de owner a member pero conserva acceso).
func (m *RoomManager) TransferRoomOwnership(ctx context.Context, guildID, newOwner, roomID, currentOwner string) error {
	if newOwner == currentOwner {
		return domain.NewError(domain.KindCanNotTransferToYourself, newOwner)
	}
	if _, err := m.gw.Member(ctx, guildID, newOwner); err != nil {
		return err
	}
	_, err := updateGuild(ctx, m.guilds, guildID, func(g *domain.Guild) error {
		rec := g.VoiceChannel(roomID)
		if rec == nil {
			return domain.NewError(domain.KindNotInVoiceChannel, roomID)
		}
		rec.Owner = newOwner
		rec.Revoke(newOwner)
		rec.Permit(currentOwner)
		return nil
	})
	if err != nil {
		return err
	}

	for _, ow := range []domain.Overwrite{
		{SubjectID: newOwner, Type: domain.SubjectMember, Allow: domain.PermsOwner},
		{SubjectID: currentOwner, Type: domain.SubjectMember, Allow: domain.PermsMember},
	} {
		if err := m.gw.EditPermission(ctx, roomID, ow); err != nil {
			return &domain.Error{Kind: domain.KindCouldNotPermitUser, Subject: ow.SubjectID, Err: err}
		}
	}
	m.log.Info("room ownership transferred", "guild", guildID, "room", roomID, "from", currentOwner, "to", newOwner)
	return m.recordEvents(ctx, guildID, roomID, m.event(currentOwner, domain.RoomTransferOwner, newOwner))
}

func (m *RoomManager) record(ctx context.Context, guildID, roomID string) (*domain.VoiceChannel, error) {
	g, err := m.guilds.Load(ctx, guildID)
	if err != nil {
		return nil, err
	}
	rec := g.VoiceChannel(roomID)
	if rec == nil {
		return nil, domain.NewError(domain.KindNotInVoiceChannel, roomID)
	}
	return rec.Clone(), nil
}

func (m *RoomManager) event(emitter string, kind domain.RoomEventKind, target string) domain.RoomEvent {
	return domain.RoomEvent{Emitter: emitter, Kind: kind, Target: target, At: m.clock.Now().UTC()}
}

// recordEvents agrega eventos al log de la sala, creándola si es la
// primera vez que se la ve.
func (m *RoomManager) recordEvents(ctx context.Context, guildID, roomID string, evs ...domain.RoomEvent) error {
	_, err := appendRoomEvents(ctx, m.rooms, guildID, roomID, m.clock.Now(), true, func(r *domain.Room) {
		for _, ev := range evs {
			r.Append(ev)
		}
	})
	return err
}
