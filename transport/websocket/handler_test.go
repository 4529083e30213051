package websocket

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	gws "github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"raceline/auth"
	"raceline/config"
	"raceline/realtime"
)

const testSecret = "test-secret"

func testConfig() config.Config {
	return config.Config{
		HeartbeatInterval:  30 * time.Second,
		PongWait:           time.Minute,
		WriteWait:          time.Second,
		MaxMessageBytes:    4096,
		SendBuffer:         16,
		LocationRatePerSec: 100,
		LocationBurst:      100,
	}
}

func signToken(t *testing.T, userID string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": userID,
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return signed
}

func startServer(t *testing.T, sub realtime.Subtype) (*realtime.Hub, *httptest.Server) {
	t.Helper()
	hub := realtime.NewHub(zerolog.Nop(), realtime.NewMetrics())
	dispatcher := realtime.NewDispatcher(hub, nil, zerolog.Nop())
	handler := NewHandler(hub, dispatcher, auth.NewVerifier(testSecret), testConfig(), zerolog.Nop())

	srv := httptest.NewServer(handler.Serve(sub))
	t.Cleanup(srv.Close)
	return hub, srv
}

func dial(t *testing.T, srv *httptest.Server, token string) *gws.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "?token=" + token
	conn, _, err := gws.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// readEnvelopes reads one frame and decodes the newline-batched envelopes
// inside it.
func readEnvelopes(t *testing.T, conn *gws.Conn) []realtime.Envelope {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}

	var envs []realtime.Envelope
	for _, line := range strings.Split(string(data), "\n") {
		if line == "" {
			continue
		}
		var env realtime.Envelope
		if err := json.Unmarshal([]byte(line), &env); err != nil {
			t.Fatalf("bad envelope %q: %v", line, err)
		}
		envs = append(envs, env)
	}
	return envs
}

// readUntil reads frames until an envelope of the wanted type arrives.
func readUntil(t *testing.T, conn *gws.Conn, msgType string) realtime.Envelope {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		for _, env := range readEnvelopes(t, conn) {
			if env.Type == msgType {
				return env
			}
		}
	}
	t.Fatalf("no %s envelope received", msgType)
	return realtime.Envelope{}
}

func waitForStats(t *testing.T, hub *realtime.Hub, wantConns int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if conns, _ := hub.Stats(); conns == wantConns {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	conns, _ := hub.Stats()
	t.Fatalf("connections = %d, want %d", conns, wantConns)
}

func TestServeRejectsMissingToken(t *testing.T) {
	hub, srv := startServer(t, realtime.SubtypeGeneral)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	_, resp, err := gws.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Fatal("dial succeeded without a token")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %v, want 401", resp)
	}
	if conns, _ := hub.Stats(); conns != 0 {
		t.Error("unauthenticated request reached the registry")
	}
}

func TestServeRejectsBadToken(t *testing.T) {
	hub, srv := startServer(t, realtime.SubtypeGeneral)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "?token=garbage"
	if _, _, err := gws.DefaultDialer.Dial(url, nil); err == nil {
		t.Fatal("dial succeeded with a bad token")
	}
	if conns, _ := hub.Stats(); conns != 0 {
		t.Error("bad token reached the registry")
	}
}

func TestServeEstablishesConnection(t *testing.T) {
	hub, srv := startServer(t, realtime.SubtypeGeneral)
	conn := dial(t, srv, signToken(t, "u1"))

	env := readUntil(t, conn, realtime.MsgConnectionEstablished)
	data := env.Data.(map[string]interface{})
	if data["userId"] != "u1" {
		t.Errorf("userId = %v, want u1", data["userId"])
	}
	if data["connectionId"] == "" {
		t.Error("connectionId missing")
	}

	if connID, ok := hub.ResolveUser("u1"); !ok || connID == "" {
		t.Error("user index not populated after connect")
	}
}

func TestJoinRaceOverSocket(t *testing.T) {
	hub, srv := startServer(t, realtime.SubtypeRace)
	conn := dial(t, srv, signToken(t, "u1"))
	readUntil(t, conn, realtime.MsgConnectionEstablished)

	msg := `{"type":"join_race","data":{"raceId":"race-1"}}`
	if err := conn.WriteMessage(gws.TextMessage, []byte(msg)); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	env := readUntil(t, conn, realtime.MsgJoinedRace)
	data := env.Data.(map[string]interface{})
	if data["raceId"] != "race-1" {
		t.Errorf("raceId = %v, want race-1", data["raceId"])
	}

	waitForStats(t, hub, 1)
	if members := hub.MembersOf("race-1"); len(members) != 1 {
		t.Errorf("members = %v, want one", members)
	}
}

func TestDisconnectUnregisters(t *testing.T) {
	hub, srv := startServer(t, realtime.SubtypeGeneral)
	conn := dial(t, srv, signToken(t, "u1"))
	readUntil(t, conn, realtime.MsgConnectionEstablished)
	waitForStats(t, hub, 1)

	_ = conn.Close()

	waitForStats(t, hub, 0)
	if _, ok := hub.ResolveUser("u1"); ok {
		t.Error("user index still resolves after disconnect")
	}
}

func TestRoomBroadcastBetweenSockets(t *testing.T) {
	_, srv := startServer(t, realtime.SubtypeRace)
	connA := dial(t, srv, signToken(t, "ua"))
	connB := dial(t, srv, signToken(t, "ub"))
	readUntil(t, connA, realtime.MsgConnectionEstablished)
	readUntil(t, connB, realtime.MsgConnectionEstablished)

	join := `{"type":"join_race","data":{"raceId":"race-1"}}`
	if err := connA.WriteMessage(gws.TextMessage, []byte(join)); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if err := connB.WriteMessage(gws.TextMessage, []byte(join)); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	readUntil(t, connA, realtime.MsgJoinedRace)
	readUntil(t, connB, realtime.MsgJoinedRace)

	update := `{"type":"race_update","data":{"raceId":"race-1","lap":5}}`
	if err := connA.WriteMessage(gws.TextMessage, []byte(update)); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	env := readUntil(t, connB, realtime.MsgRaceUpdate)
	data := env.Data.(map[string]interface{})
	if data["userId"] != "ua" || data["lap"] != float64(5) {
		t.Errorf("race_update payload = %v", data)
	}
}

func TestClientSendAfterClose(t *testing.T) {
	_, srv := startServer(t, realtime.SubtypeGeneral)
	conn := dial(t, srv, signToken(t, "u1"))

	client := NewClient(conn, testConfig(), nil, zerolog.Nop())

	_ = client.Close()
	if err := client.Send([]byte("x")); err == nil {
		t.Error("Send succeeded on closed client")
	}
	// Close is idempotent.
	_ = client.Close()
}

func TestClientSendBufferFull(t *testing.T) {
	_, srv := startServer(t, realtime.SubtypeGeneral)
	conn := dial(t, srv, signToken(t, "u1"))

	cfg := testConfig()
	cfg.SendBuffer = 1
	client := NewClient(conn, cfg, nil, zerolog.Nop())

	// No writePump draining, so the second send must fail fast.
	if err := client.Send([]byte("one")); err != nil {
		t.Fatalf("first send failed: %v", err)
	}
	if err := client.Send([]byte("two")); err == nil {
		t.Error("Send succeeded with a full buffer")
	}
}
