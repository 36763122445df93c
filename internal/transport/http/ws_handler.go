package http

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"brainplay/internal/domain"
	"brainplay/internal/game"
)

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type answerPayload struct {
	QuestionID  string `json:"questionId"`
	Answer      string `json:"answer"`
	TimeTakenMs int64  `json:"timeTakenMs"`
}

type answerResultPayload struct {
	QuestionID   string `json:"questionId"`
	IsCorrect    bool   `json:"isCorrect"`
	PointsEarned int    `json:"pointsEarned"`
}

type phasePayload struct {
	Phase game.Phase `json:"phase"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// ServeWS upgrades the request and wires the connection into a game. Hosts
// connect with role=host and drive the shared state; players join the lobby
// and submit answers. Every connected client receives quiz snapshots,
// players-changed refreshes, and its own local phase transitions.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	pin := r.URL.Query().Get("pin")
	role := r.URL.Query().Get("role")
	if role == "" {
		role = "player"
	}
	nickname := r.URL.Query().Get("nickname")
	if pin == "" || (role == "player" && nickname == "") {
		http.Error(w, "missing pin or nickname", http.StatusBadRequest)
		return
	}
	isHost := role == "host"

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	ctx := r.Context()

	var player domain.Player
	if !isHost {
		player, err = h.service.Join(ctx, pin, domain.PlayerDraft{
			Nickname: nickname,
			Team:     r.URL.Query().Get("team"),
			School:   r.URL.Query().Get("school"),
			Avatar:   domain.Avatar(r.URL.Query().Get("avatar")),
		})
		if err != nil {
			_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
			return
		}
	}

	updates, cancel, err := h.service.Subscribe(ctx, pin)
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
		return
	}
	defer cancel()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	// push is safe from any goroutine, including timer callbacks that may
	// outlive the read loop
	push := func(msg outboundMessage[any]) {
		select {
		case send <- msg:
		case <-closeSignals:
		}
	}

	machine := game.NewMachine(game.MachineConfig{
		QuestionTime: h.opts.QuestionTime,
		ResultsTime:  h.opts.ResultsTime,
		IsHost:       isHost,
		Advancer:     h.service,
		OnPhase: func(phase game.Phase) {
			push(outboundMessage[any]{Type: "phase", Payload: phasePayload{Phase: phase}})
		},
	})
	defer machine.Close()

	go func() {
		defer close(writerDone)
		for {
			select {
			case msg := <-send:
				if err := conn.WriteJSON(msg); err != nil {
					log.Printf("ws write error: %v", err)
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	go func() {
		defer close(updatesDone)
		for {
			select {
			case event, ok := <-updates:
				if !ok {
					return
				}
				if event.Quiz != nil {
					machine.ApplyQuiz(*event.Quiz)
					view := playerQuizView(*event.Quiz)
					if isHost {
						view = hostQuizView(*event.Quiz)
					}
					push(outboundMessage[any]{Type: "quiz", Payload: view})
				}
				if event.PlayersChanged {
					players, err := h.service.Players(ctx, pin)
					if err != nil {
						log.Printf("refresh players for %s: %v", pin, err)
						continue
					}
					push(outboundMessage[any]{Type: "players", Payload: players})
				}
			case <-closeSignals:
				return
			}
		}
	}()

	if !isHost {
		push(outboundMessage[any]{Type: "joined", Payload: player})
	}

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		switch inbound.Type {
		case "answer":
			if isHost {
				push(outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "host cannot answer"}})
				continue
			}
			var payload answerPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				push(outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "invalid answer payload"}})
				continue
			}
			answer := domain.Answer(payload.Answer)
			if !machine.MarkAnswered(answer) {
				push(outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "answer window closed"}})
				continue
			}
			result, err := h.service.SubmitAnswer(ctx, pin, player.ID, payload.QuestionID, answer, payload.TimeTakenMs)
			if err != nil {
				push(outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}})
				continue
			}
			push(outboundMessage[any]{Type: "answerResult", Payload: answerResultPayload{
				QuestionID:   payload.QuestionID,
				IsCorrect:    result.IsCorrect,
				PointsEarned: result.PointsEarned,
			}})
		case "start":
			h.hostCommand(push, isHost, func() error {
				return h.service.UpdateQuizStatus(ctx, pin, domain.StatusInProgress)
			})
		case "next":
			h.hostCommand(push, isHost, func() error {
				return h.advance(ctx, pin)
			})
		case "finish":
			h.hostCommand(push, isHost, func() error {
				return h.service.UpdateQuizStatus(ctx, pin, domain.StatusFinished)
			})
		case "restart":
			h.hostCommand(push, isHost, func() error {
				return h.service.UpdateQuizStatus(ctx, pin, domain.StatusLobby)
			})
		default:
			push(outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "unsupported message type"}})
		}
	}

	close(closeSignals)
	<-updatesDone
	<-writerDone
}

func (h *Handler) hostCommand(push func(outboundMessage[any]), isHost bool, run func() error) {
	if !isHost {
		push(outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "host only"}})
		return
	}
	if err := run(); err != nil {
		push(outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}})
	}
}

// advance moves to the next question, or finishes the game after the last one.
func (h *Handler) advance(ctx context.Context, pin string) error {
	quiz, ok, err := h.service.GetQuizByPin(ctx, pin)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrGameNotFound
	}
	if quiz.IsLastQuestion() {
		return h.service.UpdateQuizStatus(ctx, pin, domain.StatusFinished)
	}
	return h.service.UpdateCurrentQuestion(ctx, pin, quiz.CurrentQuestionIndex+1)
}
