package domain

import "strings"

// Guild es el agregado persistido por guild: colas + canales de voz.
// Se lee y se escribe como una unidad; Version es el contador de
// concurrencia optimista que usa el storage.
type Guild struct {
	ID            string          `json:"-"`
	Version       int64           `json:"-"`
	Queues        []*Queue        `json:"queues"`
	VoiceChannels []*VoiceChannel `json:"voice_channels"`
}

func NewGuild(id string) *Guild { return &Guild{ID: id} }

func (g *Guild) QueueByID(id string) *Queue {
	for _, q := range g.Queues {
		if q.ID == id {
			return q
		}
	}
	return nil
}

// QueueByName busca sin distinguir mayúsculas.
func (g *Guild) QueueByName(name string) *Queue {
	name = strings.TrimSpace(name)
	for _, q := range g.Queues {
		if strings.EqualFold(q.Name, name) {
			return q
		}
	}
	return nil
}

// QueueOf devuelve la cola donde está el usuario, o nil.
func (g *Guild) QueueOf(userID string) *Queue {
	for _, q := range g.Queues {
		if q.HasEntry(userID) {
			return q
		}
	}
	return nil
}

func (g *Guild) VoiceChannel(channelID string) *VoiceChannel {
	for _, v := range g.VoiceChannels {
		if v.ChannelID == channelID {
			return v
		}
	}
	return nil
}

// QueueChannel devuelve el canal de entrada de la cola, o nil.
func (g *Guild) QueueChannel(queueID string) *VoiceChannel {
	for _, v := range g.VoiceChannels {
		if v.QueueID == queueID {
			return v
		}
	}
	return nil
}

// RemoveQueue quita la cola y desliga su canal de entrada.
func (g *Guild) RemoveQueue(queueID string) bool {
	for i, q := range g.Queues {
		if q.ID != queueID {
			continue
		}
		g.Queues = append(g.Queues[:i], g.Queues[i+1:]...)
		kept := g.VoiceChannels[:0]
		for _, v := range g.VoiceChannels {
			if v.QueueID == queueID && !v.Managed {
				continue
			}
			if v.QueueID == queueID {
				v.QueueID = ""
			}
			kept = append(kept, v)
		}
		g.VoiceChannels = kept
		return true
	}
	return false
}
