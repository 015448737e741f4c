package organizer

// enableFaultCommand registers "panic", a command that always faults. It
// exists only in the test binary so the host can never reach it.
func (o *Organizer) enableFaultCommand() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.commands["panic"] = func(string) (string, bool) {
		panic("organizer: deliberate fault")
	}
}
