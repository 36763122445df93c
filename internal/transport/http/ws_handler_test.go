package http

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"brainplay/internal/app"
	"brainplay/internal/domain"
	"brainplay/internal/infra/memory"
	"github.com/gorilla/websocket"
)

func newWSServer(t *testing.T) (*httptest.Server, *app.GameService) {
	t.Helper()
	service := app.NewGameService(memory.NewSessionStore(), nil)
	handler := NewHandler(service, Options{
		QuestionTime:  time.Hour,
		ResultsTime:   time.Hour,
		AllowLateJoin: true,
	})
	server := httptest.NewServer(handler.Routes())
	t.Cleanup(server.Close)
	return server, service
}

func wsURL(server *httptest.Server, query string) string {
	return "ws" + server.URL[len("http"):] + "/ws?" + query
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readNext leaves the payload raw; object and array payloads (players lists)
// share the same stream.
func readNext(t *testing.T, conn *websocket.Conn) (string, json.RawMessage) {
	t.Helper()
	var msg struct {
		Type    string          `json:"type"`
		Payload json.RawMessage `json:"payload"`
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read json: %v", err)
	}
	return msg.Type, msg.Payload
}

// readUntil consumes messages until one of the wanted type arrives, then
// decodes that payload as an object.
func readUntil(t *testing.T, conn *websocket.Conn, want string) map[string]any {
	t.Helper()
	raw := readUntilRaw(t, conn, want)
	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		t.Fatalf("decode %s payload: %v", want, err)
	}
	return payload
}

func readUntilRaw(t *testing.T, conn *websocket.Conn, want string) json.RawMessage {
	t.Helper()
	for i := 0; i < 20; i++ {
		typ, raw := readNext(t, conn)
		if typ == want {
			return raw
		}
	}
	t.Fatalf("never received %q", want)
	return nil
}

func TestWebSocketPlayerJoinAndAnswer(t *testing.T) {
	server, service := newWSServer(t)

	quiz, err := service.CreateGameFromCSV(context.Background(), strings.NewReader(uploadCSV), true, false)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	player := dial(t, wsURL(server, "pin="+quiz.GamePin+"&nickname=ada&avatar=star&team=Red"))

	joined := readUntil(t, player, "joined")
	if joined["nickname"] != "ada" || joined["avatar"] != "star" {
		t.Fatalf("joined payload = %v", joined)
	}
	playerID, _ := joined["id"].(string)
	if playerID == "" {
		t.Fatalf("joined payload missing id")
	}

	// initial quiz snapshot must not leak the answer key
	snapshot := readUntil(t, player, "quiz")
	questions, _ := snapshot["questions"].([]any)
	if len(questions) != 2 {
		t.Fatalf("snapshot questions = %v", snapshot)
	}
	if q0, _ := questions[0].(map[string]any); q0["correctAnswer"] != "" {
		t.Fatalf("player snapshot leaked a correct answer: %v", questions[0])
	}

	if err := service.UpdateQuizStatus(context.Background(), quiz.GamePin, domain.StatusInProgress); err != nil {
		t.Fatalf("start: %v", err)
	}
	readUntil(t, player, "phase")

	if err := player.WriteJSON(map[string]any{
		"type": "answer",
		"payload": map[string]any{
			"questionId":  quiz.Questions[0].ID,
			"answer":      "B",
			"timeTakenMs": 1200,
		},
	}); err != nil {
		t.Fatalf("write answer: %v", err)
	}

	result := readUntil(t, player, "answerResult")
	if result["isCorrect"] != true || result["pointsEarned"] != float64(138) {
		t.Fatalf("answer result = %v", result)
	}

	// a second answer for the same question is rejected locally
	if err := player.WriteJSON(map[string]any{
		"type": "answer",
		"payload": map[string]any{
			"questionId":  quiz.Questions[0].ID,
			"answer":      "C",
			"timeTakenMs": 1300,
		},
	}); err != nil {
		t.Fatalf("write answer: %v", err)
	}
	errMsg := readUntil(t, player, "error")
	if errMsg["message"] != "answer window closed" {
		t.Fatalf("error payload = %v", errMsg)
	}
}

func TestWebSocketDuplicateNickname(t *testing.T) {
	server, service := newWSServer(t)

	quiz, err := service.CreateGameFromCSV(context.Background(), strings.NewReader(uploadCSV), true, false)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	first := dial(t, wsURL(server, "pin="+quiz.GamePin+"&nickname=ada"))
	readUntil(t, first, "joined")

	second := dial(t, wsURL(server, "pin="+quiz.GamePin+"&nickname=ada"))
	errMsg := readUntil(t, second, "error")
	if msg, _ := errMsg["message"].(string); !strings.Contains(msg, "nickname") {
		t.Fatalf("error payload = %v", errMsg)
	}
}

func TestWebSocketHostDrivesTheGame(t *testing.T) {
	server, service := newWSServer(t)

	quiz, err := service.CreateGameFromCSV(context.Background(), strings.NewReader(uploadCSV), true, false)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	host := dial(t, wsURL(server, "pin="+quiz.GamePin+"&role=host"))

	// the host snapshot includes the answer key
	snapshot := readUntil(t, host, "quiz")
	questions, _ := snapshot["questions"].([]any)
	if q0, _ := questions[0].(map[string]any); q0["correctAnswer"] != "B" {
		t.Fatalf("host snapshot missing answer key: %v", questions[0])
	}

	if err := host.WriteJSON(map[string]any{"type": "start"}); err != nil {
		t.Fatalf("write start: %v", err)
	}
	for {
		payload := readUntil(t, host, "quiz")
		if payload["status"] == "in_progress" {
			break
		}
	}

	if err := host.WriteJSON(map[string]any{"type": "next"}); err != nil {
		t.Fatalf("write next: %v", err)
	}
	for {
		payload := readUntil(t, host, "quiz")
		if payload["currentQuestionIndex"] == float64(1) {
			break
		}
	}

	// next past the last question finishes the game
	if err := host.WriteJSON(map[string]any{"type": "finish"}); err != nil {
		t.Fatalf("write finish: %v", err)
	}
	for {
		payload := readUntil(t, host, "quiz")
		if payload["status"] == "finished" {
			break
		}
	}
}

func TestWebSocketPlayerCannotDrive(t *testing.T) {
	server, service := newWSServer(t)

	quiz, err := service.CreateGameFromCSV(context.Background(), strings.NewReader(uploadCSV), true, false)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	player := dial(t, wsURL(server, "pin="+quiz.GamePin+"&nickname=ada"))
	readUntil(t, player, "joined")

	if err := player.WriteJSON(map[string]any{"type": "start"}); err != nil {
		t.Fatalf("write start: %v", err)
	}
	errMsg := readUntil(t, player, "error")
	if errMsg["message"] != "host only" {
		t.Fatalf("error payload = %v", errMsg)
	}

	got, _, err := service.GetQuizByPin(context.Background(), quiz.GamePin)
	if err != nil {
		t.Fatalf("get quiz: %v", err)
	}
	if got.Status != domain.StatusLobby {
		t.Fatalf("player start must not change status, got %q", got.Status)
	}
}

func TestWebSocketPlayersBroadcastInterleaves(t *testing.T) {
	server, service := newWSServer(t)

	quiz, err := service.CreateGameFromCSV(context.Background(), strings.NewReader(uploadCSV), true, false)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	conn := dial(t, wsURL(server, "pin="+quiz.GamePin+"&nickname=ada"))
	readUntil(t, conn, "joined")

	// a second join pushes an array-payload players message onto the stream
	if _, err := service.Join(context.Background(), quiz.GamePin, domain.PlayerDraft{Nickname: "bob"}); err != nil {
		t.Fatalf("join bob: %v", err)
	}
	raw := readUntilRaw(t, conn, "players")
	var players []domain.Player
	if err := json.Unmarshal(raw, &players); err != nil {
		t.Fatalf("decode players payload: %v", err)
	}
	if len(players) != 2 {
		t.Fatalf("players = %d, want 2", len(players))
	}

	// object-payload messages after the array must still decode
	if err := service.UpdateQuizStatus(context.Background(), quiz.GamePin, domain.StatusInProgress); err != nil {
		t.Fatalf("start: %v", err)
	}
	for {
		payload := readUntil(t, conn, "quiz")
		if payload["status"] == "in_progress" {
			return
		}
	}
}

func TestWebSocketMissingParams(t *testing.T) {
	server, _ := newWSServer(t)

	_, resp, err := websocket.DefaultDialer.Dial(wsURL(server, "role=player&nickname="), nil)
	if err == nil {
		t.Fatalf("expected handshake failure")
	}
	if resp == nil || resp.StatusCode != 400 {
		t.Fatalf("expected 400 handshake response, got %+v", resp)
	}
}
