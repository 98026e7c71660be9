package ws

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/your-org/photomarket/internal/auth"
	"github.com/your-org/photomarket/internal/models"
	"github.com/your-org/photomarket/pkg/dto"
)

const secret = "ws-secret"

func dial(t *testing.T, srv *httptest.Server, user uuid.UUID) *websocket.Conn {
	t.Helper()
	token, err := auth.IssueToken(secret, user, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitConnected(t *testing.T, h *Hub, user uuid.UUID) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for h.Connected(user) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestHubDeliversToMatchedClientOnly(t *testing.T) {
	gin.SetMode(gin.TestMode)
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	r := gin.New()
	r.GET("/ws", auth.BearerMiddleware(secret), hub.HandleWS)
	srv := httptest.NewServer(r)
	defer srv.Close()

	alice, bob := uuid.New(), uuid.New()
	aliceConn := dial(t, srv, alice)
	bobConn := dial(t, srv, bob)
	waitConnected(t, hub, alice)
	waitConnected(t, hub, bob)

	photo := uuid.New()
	err := hub.PublishMatch(ctx, models.MatchEvent{
		ClientID:   alice,
		PhotoID:    photo,
		Confidence: 72.5,
		Timestamp:  time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("PublishMatch() error = %v", err)
	}

	_ = aliceConn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, data, err := aliceConn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var ev dto.WSEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		t.Fatal(err)
	}
	if ev.Type != "photo_matched" || ev.PhotoID != photo || ev.Confidence != 72.5 {
		t.Errorf("event = %+v, want photo_matched for %s", ev, photo)
	}

	_ = bobConn.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	if _, _, err := bobConn.ReadMessage(); err == nil {
		t.Error("bob received a notification meant for alice")
	}
}

func TestHandleWSRequiresToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	hub := NewHub()
	r := gin.New()
	r.GET("/ws", auth.BearerMiddleware(secret), hub.HandleWS)
	srv := httptest.NewServer(r)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Fatal("dial without token succeeded")
	}
	if resp == nil || resp.StatusCode != 401 {
		t.Errorf("status = %v, want 401", resp)
	}
}
