package http

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Usman11801/qetemplate-sub000/internal/app"
	"github.com/Usman11801/qetemplate-sub000/internal/domain"
	"github.com/Usman11801/qetemplate-sub000/internal/infra/memory"
)

func TestWebSocketSubmitFlow(t *testing.T) {
	server := newTestServer(t)
	defer server.Close()

	u := "ws" + server.URL[len("http"):] + "/ws?sessionId=sess-1&respondentId=u1&name=Alice"
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// Entering issues the credential and the answer-key-free session view.
	_, payload := readNext(conn, t, "entered")
	if payload["token"] == "" || payload["token"] == nil {
		t.Fatalf("expected token in entered payload, got %v", payload)
	}
	session, ok := payload["session"].(map[string]any)
	if !ok {
		t.Fatalf("expected session view, got %v", payload["session"])
	}
	questions := session["questions"].([]any)
	comp := questions[0].(map[string]any)["components"].([]any)[0].(map[string]any)
	if _, leaked := comp["correctOption"]; leaked {
		t.Fatalf("session view must not carry answer keys: %v", comp)
	}

	// Answer and submit the first question.
	writeMsg(conn, t, "answer", map[string]any{"questionId": 1, "componentId": 10, "value": 1})
	writeMsg(conn, t, "submitQuestion", map[string]any{"questionId": 1})

	_, payload = readNext(conn, t, "questionResult")
	if payload["correct"] != true {
		t.Fatalf("expected correct submission, got %v", payload)
	}
	if payload["awarded"].(float64) != 2 {
		t.Fatalf("expected 2 points awarded, got %v", payload["awarded"])
	}

	// Final submit.
	writeMsg(conn, t, "submitAll", nil)
	_, payload = readNext(conn, t, "completed")
	if payload["total"].(float64) != 2 {
		t.Fatalf("expected total 2, got %v", payload)
	}
}

func TestWebSocketValidationAndLeaderboard(t *testing.T) {
	server := newTestServer(t)
	defer server.Close()

	u := "ws" + server.URL[len("http"):] + "/ws?sessionId=sess-lb&respondentId=u1&name=Alice"
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// The initial leaderboard snapshot may land before or after entered.
	for i := 0; ; i++ {
		typ, _ := readNext(conn, t, "")
		if typ == "entered" {
			break
		}
		if i >= 2 {
			t.Fatalf("never saw entered message")
		}
	}

	// Submitting without an answer reports the missing components and does
	// not consume an attempt.
	writeMsg(conn, t, "submitQuestion", map[string]any{"questionId": 1})
	_, payload := readNext(conn, t, "validation")
	missing := payload["missing"].([]any)
	if len(missing) != 1 || missing[0].(float64) != 10 {
		t.Fatalf("expected component 10 missing, got %v", payload)
	}

	writeMsg(conn, t, "answer", map[string]any{"questionId": 1, "componentId": 10, "value": 1})
	writeMsg(conn, t, "submitQuestion", map[string]any{"questionId": 1})

	// A scoring submit produces both a result and a leaderboard broadcast.
	resultSeen := false
	leaderboardSeen := false
	for i := 0; i < 4 && !(resultSeen && leaderboardSeen); i++ {
		typ, p := readNext(conn, t, "")
		switch typ {
		case "questionResult":
			if p["attempts"].(float64) != 1 {
				t.Fatalf("validation must not burn an attempt, got %v", p)
			}
			resultSeen = true
		case "leaderboard":
			if entries, ok := p["entries"].([]any); ok && len(entries) > 0 {
				leaderboardSeen = true
			}
		}
	}
	if !resultSeen || !leaderboardSeen {
		t.Fatalf("expected questionResult and leaderboard, got result=%v leaderboard=%v", resultSeen, leaderboardSeen)
	}
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	loader := memory.NewStaticSessionLoader(sampleSessions())
	service := app.NewQuizService(app.Deps{
		Sessions:  memory.NewSessionRepository(loader, time.Minute),
		Responses: memory.NewResponseStore(),
		Ephemeral: memory.NewEphemeralStore(),
		Slots:     memory.NewAwardSlots(),
		Runs:      memory.NewRunStore(),
		Boards:    memory.NewBoardStore(),
	})
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", NewWSHandler(service).ServeWS)
	return httptest.NewServer(mux)
}

func writeMsg(conn *websocket.Conn, t *testing.T, typ string, payload map[string]any) {
	t.Helper()
	msg := map[string]any{"type": typ}
	if payload != nil {
		msg["payload"] = payload
	}
	if err := conn.WriteJSON(msg); err != nil {
		t.Fatalf("write %s: %v", typ, err)
	}
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

func sampleSessions() map[string]domain.Session {
	correct := 1
	return map[string]domain.Session{
		"sess-1": {
			ID:     "sess-1",
			FormID: "form-1",
			Questions: []domain.Question{
				{
					ID: 1,
					Components: []domain.Component{
						{ID: 10, Kind: domain.KindMultipleChoice, Prompt: "What is 1 + 1?", Options: []string{"1", "2"}, CorrectOption: &correct},
					},
					Points:      2,
					MaxAttempts: 2,
				},
			},
		},
		"sess-lb": {
			ID:     "sess-lb",
			FormID: "form-2",
			Questions: []domain.Question{
				{
					ID: 1,
					Components: []domain.Component{
						{ID: 10, Kind: domain.KindMultipleChoice, Prompt: "Pick the second option", Options: []string{"no", "yes"}, CorrectOption: &correct},
					},
					Points: 1,
				},
			},
			Settings: domain.Settings{LeaderboardEnabled: true},
		},
	}
}
