package collab

// Presence announcements go to the peers already in the canvas; the mover
// itself learns about the join through the roster it receives.

func (e *Engine) announceJoin(canvasID string, entry RosterEntry) {
	payload := UserJoined{
		UserID:   entry.ID,
		Name:     entry.Name,
		JoinedAt: entry.JoinedAt,
	}
	for _, peer := range e.sessions.Peers(canvasID, entry.ID) {
		peer.Send(EventUserJoined, payload)
	}
}

func (e *Engine) announceLeave(canvasID string, entry RosterEntry) {
	payload := UserLeft{UserID: entry.ID}
	for _, peer := range e.sessions.Peers(canvasID, entry.ID) {
		peer.Send(EventUserLeft, payload)
	}
}
