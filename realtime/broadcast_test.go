package realtime

import (
	"testing"
	"time"
)

func TestBroadcastToRoomReachesMembersOnly(t *testing.T) {
	h := newTestHub()
	chA := &fakeChannel{}
	chB := &fakeChannel{}
	chC := &fakeChannel{}
	a := registerUser(h, chA, SubtypeRace, "ua")
	b := registerUser(h, chB, SubtypeRace, "ub")
	registerUser(h, chC, SubtypeRace, "uc")
	h.Join("race-1", a.ID)
	h.Join("race-1", b.ID)

	h.BroadcastToRoom("race-1", NewEnvelope(MsgRaceUpdate, map[string]interface{}{"lap": 3}))

	if !chA.received(t, MsgRaceUpdate) {
		t.Error("member A did not receive room broadcast")
	}
	if !chB.received(t, MsgRaceUpdate) {
		t.Error("member B did not receive room broadcast")
	}
	if chC.received(t, MsgRaceUpdate) {
		t.Error("non-member C received room broadcast")
	}
}

func TestBroadcastToAbsentRoomIsNoop(t *testing.T) {
	h := newTestHub()
	ch := &fakeChannel{}
	registerUser(h, ch, SubtypeRace, "u1")

	h.BroadcastToRoom("ghost-room", NewEnvelope(MsgRaceUpdate, nil))

	if ch.received(t, MsgRaceUpdate) {
		t.Error("broadcast to absent room reached a connection")
	}
}

func TestSendToUnmappedUserIsNoop(t *testing.T) {
	h := newTestHub()

	// Must not panic or error.
	h.SendToUser("offline-user", NewEnvelope(MsgFriendRequestReceived, nil))
}

func TestNotifyUserAfterSoleConnectionCloses(t *testing.T) {
	h := newTestHub()
	ch := &fakeChannel{}
	conn := registerUser(h, ch, SubtypeNotification, "u1")

	h.Unregister(conn.ID)
	h.NotifyUser("u1", NewEnvelope(MsgFriendRequestReceived, map[string]interface{}{"from": "u2"}))

	if ch.received(t, MsgFriendRequestReceived) {
		t.Error("closed connection received notification")
	}
	if _, ok := h.ResolveUser("u1"); ok {
		t.Error("user index still resolves to closed connection")
	}
}

func TestSendToConnection(t *testing.T) {
	h := newTestHub()
	ch := &fakeChannel{}
	conn := registerUser(h, ch, SubtypeGeneral, "u1")

	h.SendToConnection(conn.ID, NewEnvelope("direct", nil))

	if !ch.received(t, "direct") {
		t.Error("direct send not delivered")
	}

	// Unknown id is a silent no-op.
	h.SendToConnection("no-such-conn", NewEnvelope("direct", nil))
}

func TestBroadcastToSubtype(t *testing.T) {
	h := newTestHub()
	locCh := &fakeChannel{}
	raceCh := &fakeChannel{}
	registerUser(h, locCh, SubtypeLocation, "u1")
	registerUser(h, raceCh, SubtypeRace, "u2")

	h.BroadcastToSubtype(SubtypeLocation, NewEnvelope(MsgLocationUpdate, nil))

	if !locCh.received(t, MsgLocationUpdate) {
		t.Error("location connection did not receive subtype broadcast")
	}
	if raceCh.received(t, MsgLocationUpdate) {
		t.Error("race connection received location subtype broadcast")
	}
}

func TestSendFailureSchedulesCleanup(t *testing.T) {
	h := newTestHub()
	ch := &fakeChannel{}
	conn := registerUser(h, ch, SubtypeGeneral, "u1")

	ch.mu.Lock()
	ch.failSends = true
	ch.mu.Unlock()

	h.SendToConnection(conn.ID, NewEnvelope("anything", nil))

	waitFor(t, func() bool {
		_, ok := h.Get(conn.ID)
		return !ok
	})
	if _, ok := h.ResolveUser("u1"); ok {
		t.Error("user index still resolves after send-failure cleanup")
	}
}

func TestDeliveryStampsTimestamp(t *testing.T) {
	h := newTestHub()
	ch := &fakeChannel{}
	conn := registerUser(h, ch, SubtypeGeneral, "u1")

	h.SendToConnection(conn.ID, NewEnvelope("stamped", nil))

	envs := ch.envelopes(t)
	last := envs[len(envs)-1]
	if _, err := time.Parse(time.RFC3339, last.Timestamp); err != nil {
		t.Errorf("timestamp %q is not RFC3339: %v", last.Timestamp, err)
	}
}

func TestTypedNotifications(t *testing.T) {
	h := newTestHub()
	roomCh := &fakeChannel{}
	userCh := &fakeChannel{}
	member := registerUser(h, roomCh, SubtypeRace, "member")
	registerUser(h, userCh, SubtypeNotification, "target")
	h.Join("race-9", member.ID)

	h.NotifyRaceStarted("race-9", "go go go")
	h.NotifyRaceCompleted("race-9", []string{"member"}, "done")
	h.NotifyFriendRequestReceived("target", map[string]string{"userId": "u2"}, "hi")
	h.NotifyFriendRequestAccepted("target", map[string]string{"userId": "u2"}, "accepted")
	h.NotifyRaceInvitation("target", map[string]string{"raceId": "race-9"}, "u2", "join us")

	for _, want := range []string{MsgRaceStarted, MsgRaceCompleted} {
		if !roomCh.received(t, want) {
			t.Errorf("room member missing %s", want)
		}
	}
	for _, want := range []string{MsgFriendRequestReceived, MsgFriendRequestAccepted, MsgRaceInvitation} {
		if !userCh.received(t, want) {
			t.Errorf("target user missing %s", want)
		}
	}

	envs := roomCh.envelopes(t)
	for _, env := range envs {
		if env.Type != MsgRaceStarted {
			continue
		}
		data := env.Data.(map[string]interface{})
		if data["raceId"] != "race-9" || data["status"] != "active" {
			t.Errorf("race_started payload = %v", data)
		}
	}
}
