package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"classroom-service/internal/app"
	"classroom-service/internal/domain"
	"classroom-service/internal/infra/memory"
	"classroom-service/internal/persist"
	"github.com/gorilla/websocket"
)

func TestWebSocketConsoleFlow(t *testing.T) {
	service := newClassroom(t)
	if _, err := service.StartSession(context.Background(), testDate, 1, testGrade); err != nil {
		t.Fatalf("start session: %v", err)
	}
	wsHandler := NewWSHandler(service)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws/console", wsHandler.ServeWS)
	server := httptest.NewServer(mux)
	defer server.Close()

	u := "ws" + server.URL[len("http"):] + "/ws/console?date=" + testDate + "&grade=Grade+3+O&period=1"
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// The current board arrives on subscribe.
	_, payload := readNext(conn, t, "board")
	if state := payload["picker"].(map[string]any)["state"]; state != string(app.StateIdle) {
		t.Fatalf("expected idle picker, got %v", state)
	}

	send(t, conn, map[string]any{"type": "draw"})
	_, payload = readUntil(conn, t, "board")
	if state := payload["picker"].(map[string]any)["state"]; state != string(app.StateDrawn) {
		t.Fatalf("expected drawn picker, got %v", state)
	}

	send(t, conn, map[string]any{"type": "startTimer"})
	readUntil(conn, t, "tick")

	send(t, conn, map[string]any{"type": "resolve", "payload": map[string]any{"correct": true}})
	_, payload = readUntil(conn, t, "resolution")
	if payload["isCorrect"] != true {
		t.Fatalf("expected correct resolution, got %v", payload)
	}
	if awarded := payload["awarded"].(float64); awarded != 1100 {
		t.Fatalf("expected 1100 awarded within grace, got %v", awarded)
	}
}

func TestWebSocketRejectsCommandOutOfOrder(t *testing.T) {
	service := newClassroom(t)
	if _, err := service.StartSession(context.Background(), testDate, 2, testGrade); err != nil {
		t.Fatalf("start session: %v", err)
	}
	server := httptest.NewServer(http.HandlerFunc(NewWSHandler(service).ServeWS))
	defer server.Close()

	u := "ws" + server.URL[len("http"):] + "/?date=" + testDate + "&grade=Grade+3+O&period=2"
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	readNext(conn, t, "board")

	send(t, conn, map[string]any{"type": "startTimer"})
	_, payload := readUntil(conn, t, "error")
	if payload["message"] != domain.ErrNoActiveStudent.Error() {
		t.Fatalf("unexpected error message %v", payload["message"])
	}
}

func TestWebSocketUnknownSession(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(NewWSHandler(newClassroom(t)).ServeWS))
	defer server.Close()

	u := "ws" + server.URL[len("http"):] + "/?date=" + testDate + "&grade=Grade+3+O&period=3"
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	readNext(conn, t, "error")
}

func TestWebSocketHandlerReturnsWhenClientVanishes(t *testing.T) {
	service := newClassroom(t)
	ctx := context.Background()
	if _, err := service.StartSession(ctx, testDate, 4, testGrade); err != nil {
		t.Fatalf("start session: %v", err)
	}
	scope := domain.SessionScope{Date: testDate, Grade: testGrade, Period: 4}

	returned := make(chan struct{})
	ws := NewWSHandler(service)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws.ServeWS(w, r)
		close(returned)
	}))
	defer server.Close()

	u := "ws" + server.URL[len("http"):] + "/?date=" + testDate + "&grade=Grade+3+O&period=4"
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	readNext(conn, t, "board")

	// keep the server writing boards and ticks after the client is gone
	_ = conn.UnderlyingConn().Close()
	if _, err := service.Draw(ctx, scope); err != nil {
		t.Fatalf("draw: %v", err)
	}
	if _, err := service.StartTimer(ctx, scope); err != nil {
		t.Fatalf("start timer: %v", err)
	}

	select {
	case <-returned:
	case <-time.After(3 * time.Second):
		t.Fatalf("handler still running after the client disconnected")
	}
}

const (
	testDate  = "2026-10-19"
	testGrade = "Grade 3 O"
)

func newClassroom(t *testing.T) *app.ClassroomService {
	t.Helper()
	rosters := memory.NewRosterRepository(memory.NewStaticRosterLoader(map[string]domain.Roster{
		testGrade: {Grade: testGrade, Students: []domain.StudentProfile{{Name: "Amy"}, {Name: "Bo"}}},
	}), time.Minute)
	ledger := persist.NewLedger(memory.NewKV(), nil)
	return app.NewClassroomService(memory.NewSessionStore(), rosters, ledger, domain.DefaultSessionRules(), app.DefaultPickerConfig())
}

func send(t *testing.T, conn *websocket.Conn, msg map[string]any) {
	t.Helper()
	if err := conn.WriteJSON(msg); err != nil {
		t.Fatalf("write %v: %v", msg["type"], err)
	}
}

// readUntil skips messages until one of type expect arrives.
func readUntil(conn *websocket.Conn, t *testing.T, expect string) (string, map[string]any) {
	t.Helper()
	for i := 0; i < 50; i++ {
		typ, payload := readNext(conn, t, "")
		if typ == expect {
			return typ, payload
		}
	}
	t.Fatalf("no %s message received", expect)
	return "", nil
}

func readNext(conn *websocket.Conn, t *testing.T, expect string) (string, map[string]any) {
	t.Helper()
	var msg struct {
		Type    string         `json:"type"`
		Payload map[string]any `json:"payload"`
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read json: %v", err)
	}
	if expect != "" && msg.Type != expect {
		t.Fatalf("expected type %s, got %s", expect, msg.Type)
	}
	return msg.Type, msg.Payload
}
