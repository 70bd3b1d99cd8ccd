package service

// LockGuild expone el lock por guild a los tests del paquete service_test.
func (m *QueueManager) LockGuild(guildID string) func() { return m.lockGuild(guildID) }
