package discord

import "github.com/bwmarrin/discordgo"

var (
	optQueueName = &discordgo.ApplicationCommandOption{
		Type: discordgo.ApplicationCommandOptionString, Name: "queue", Description: "Nombre de la cola", Required: true,
	}
	optTarget = &discordgo.ApplicationCommandOption{
		Type: discordgo.ApplicationCommandOptionUser, Name: "user", Description: "Usuario", Required: true,
	}
	optTextChannel = &discordgo.ApplicationCommandOption{
		Type:         discordgo.ApplicationCommandOptionChannel,
		Name:         "channel",
		Description:  "Canal de texto",
		Required:     true,
		ChannelTypes: []discordgo.ChannelType{discordgo.ChannelTypeGuildText},
	}
	minOne  = 1.0
	minZero = 0.0
)

func sub(name, desc string, opts ...*discordgo.ApplicationCommandOption) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionSubCommand,
		Name:        name,
		Description: desc,
		Options:     opts,
	}
}

var Commands = []*discordgo.ApplicationCommand{
	{
		Name:        "queue",
		Description: "Colas de atención",
		Options: []*discordgo.ApplicationCommandOption{
			sub("create", "Crea una cola sobre un canal de voz (admins)",
				&discordgo.ApplicationCommandOption{Type: discordgo.ApplicationCommandOptionString, Name: "name", Description: "Nombre único", Required: true},
				&discordgo.ApplicationCommandOption{
					Type:         discordgo.ApplicationCommandOptionChannel,
					Name:         "channel",
					Description:  "Canal de voz de entrada",
					Required:     true,
					ChannelTypes: []discordgo.ChannelType{discordgo.ChannelTypeGuildVoice},
				},
				&discordgo.ApplicationCommandOption{Type: discordgo.ApplicationCommandOptionInteger, Name: "timeout_ms", Description: "Ventana de reconexión en ms (0 = inmediato)", MinValue: &minZero},
				&discordgo.ApplicationCommandOption{Type: discordgo.ApplicationCommandOptionString, Name: "description", Description: "Descripción"},
				&discordgo.ApplicationCommandOption{Type: discordgo.ApplicationCommandOptionString, Name: "exempt_roles", Description: "Roles de tutor ignorados (menciones o ids)"},
				&discordgo.ApplicationCommandOption{Type: discordgo.ApplicationCommandOptionString, Name: "supervisor_roles", Description: "Roles que administran las salas (menciones o ids)"},
			),
			sub("delete", "Borra una cola (admins)", optQueueName),
			sub("lock", "Cierra la cola (admins)", optQueueName),
			sub("unlock", "Abre la cola (admins)", optQueueName),
			sub("list", "Lista las colas del servidor"),
			sub("show", "Muestra quién espera en una cola", optQueueName),
			sub("leave", "Sal de la cola en la que estás"),
			sub("kick", "Saca a alguien de su cola (admins)", optTarget),
			sub("timeout", "Cambia la ventana de reconexión (admins)", optQueueName,
				&discordgo.ApplicationCommandOption{Type: discordgo.ApplicationCommandOptionInteger, Name: "ms", Description: "Milisegundos (0 = inmediato)", Required: true, MinValue: &minZero},
			),
			sub("message", "Cambia una plantilla de mensaje (admins)", optQueueName,
				&discordgo.ApplicationCommandOption{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "event",
					Description: "Evento",
					Required:    true,
					Choices: []*discordgo.ApplicationCommandOptionChoice{
						{Name: "join", Value: "join"},
						{Name: "stay", Value: "stay"},
						{Name: "leave", Value: "leave"},
						{Name: "confirm_leave", Value: "confirm_leave"},
						{Name: "locked", Value: "locked"},
						{Name: "match", Value: "match"},
					},
				},
				&discordgo.ApplicationCommandOption{Type: discordgo.ApplicationCommandOptionString, Name: "template", Description: "Texto con {variables}; vacío restaura el default"},
			),
			sub("info-add", "Suscribe un canal a eventos de la cola (admins)", optQueueName, optTextChannel,
				&discordgo.ApplicationCommandOption{Type: discordgo.ApplicationCommandOptionString, Name: "events", Description: "join, leave, stay, confirm_leave, locked, match (vacío = todos)"},
			),
			sub("info-remove", "Quita la suscripción de un canal (admins)", optQueueName, optTextChannel),
			sub("panel", "Publica el panel de la cola en este canal (admins)", optQueueName),
		},
	},
	{
		Name:        "session",
		Description: "Sesiones de tutoría",
		Options: []*discordgo.ApplicationCommandOption{
			sub("start", "Empieza tu sesión",
				&discordgo.ApplicationCommandOption{Type: discordgo.ApplicationCommandOptionString, Name: "queue", Description: "Cola que atiendes"},
			),
			sub("end", "Termina tu sesión"),
			sub("status", "Estado de tu sesión"),
		},
	},
	{
		Name:        "pick",
		Description: "Toma a los siguientes de tu cola y abre una sala",
		Options: []*discordgo.ApplicationCommandOption{
			{Type: discordgo.ApplicationCommandOptionInteger, Name: "count", Description: "Cuántos (default 1)", MinValue: &minOne, MaxValue: 25},
		},
	},
	{
		Name:        "room",
		Description: "Controla tu sala temporal",
		Options: []*discordgo.ApplicationCommandOption{
			sub("lock", "Cierra la sala"),
			sub("unlock", "Abre la sala"),
			sub("hide", "Oculta la sala"),
			sub("show", "Muestra la sala"),
			sub("permit", "Da acceso a alguien", optTarget),
			sub("revoke", "Quita el acceso a alguien", optTarget),
			sub("kick", "Saca a alguien de la sala y le quita el acceso", optTarget),
			sub("kick-all", "Saca a todos menos a ti"),
			sub("transfer", "Pasa la sala a otra persona", optTarget),
		},
	},
}
