package realtime

// Notification glue for the REST side of the system. Route handlers call
// these after a successful mutation to push a live event; delivery is best
// effort and an undeliverable notification must never fail the REST request.

// NotifyUser pushes an envelope to a user's current connection, if any.
func (h *Hub) NotifyUser(userID string, env Envelope) {
	h.SendToUser(userID, env)
}

// NotifyRoom pushes an envelope to every member of a race room, if any.
func (h *Hub) NotifyRoom(raceID string, env Envelope) {
	h.BroadcastToRoom(raceID, env)
}

// NotifyRaceStarted tells a race's room the race has begun.
func (h *Hub) NotifyRaceStarted(raceID, message string) {
	h.NotifyRoom(raceID, NewEnvelope(MsgRaceStarted, map[string]interface{}{
		"raceId":  raceID,
		"status":  "active",
		"message": message,
	}))
}

// NotifyRaceCompleted tells a race's room the race has finished, carrying
// the final results.
func (h *Hub) NotifyRaceCompleted(raceID string, results interface{}, message string) {
	h.NotifyRoom(raceID, NewEnvelope(MsgRaceCompleted, map[string]interface{}{
		"raceId":  raceID,
		"status":  "completed",
		"results": results,
		"message": message,
	}))
}

// NotifyFriendRequestReceived tells a user someone sent them a friend request.
func (h *Hub) NotifyFriendRequestReceived(userID string, from interface{}, message string) {
	h.NotifyUser(userID, NewEnvelope(MsgFriendRequestReceived, map[string]interface{}{
		"from":    from,
		"message": message,
	}))
}

// NotifyFriendRequestAccepted tells a user their friend request was accepted.
func (h *Hub) NotifyFriendRequestAccepted(userID string, friend interface{}, message string) {
	h.NotifyUser(userID, NewEnvelope(MsgFriendRequestAccepted, map[string]interface{}{
		"friend":  friend,
		"message": message,
	}))
}

// NotifyRaceInvitation tells a user they were invited to a race.
func (h *Hub) NotifyRaceInvitation(userID string, race interface{}, invitedBy, message string) {
	h.NotifyUser(userID, NewEnvelope(MsgRaceInvitation, map[string]interface{}{
		"race":      race,
		"invitedBy": invitedBy,
		"message":   message,
	}))
}
