package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Usman11801/qetemplate-sub000/internal/app"
	"github.com/Usman11801/qetemplate-sub000/internal/domain"
)

type WSHandler struct {
	service  *app.QuizService
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.QuizService) *WSHandler {
	return &WSHandler{
		service: service,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type answerPayload struct {
	QuestionID  int `json:"questionId"`
	ComponentID int `json:"componentId"`
	Value       any `json:"value"`
}

type questionPayload struct {
	QuestionID int `json:"questionId"`
}

type visibilityPayload struct {
	Hidden bool `json:"hidden"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

type validationPayload struct {
	QuestionID int   `json:"questionId"`
	Missing    []int `json:"missing"`
}

type enteredPayload struct {
	Token      string       `json:"token"`
	ResponseID string       `json:"responseId"`
	Session    sessionView  `json:"session"`
	Progress   progressView `json:"progress"`
}

type progressView struct {
	Attempts map[int]int                    `json:"attempts"`
	Scores   map[int]int                    `json:"scores"`
	Verdicts map[int]map[int]domain.Verdict `json:"verdicts"`
	Total    int                            `json:"total"`
	Times    map[int]int64                  `json:"times"`
	Status   string                         `json:"status"`
}

// sessionView is the respondent-facing snapshot: answer keys are stripped.
type sessionView struct {
	ID        string         `json:"id"`
	FormID    string         `json:"formId"`
	Deadline  *time.Time     `json:"deadline,omitempty"`
	Questions []questionView `json:"questions"`
	Settings  settingsView   `json:"settings"`
}

type settingsView struct {
	LeaderboardEnabled bool `json:"leaderboardEnabled"`
	Sequential         bool `json:"sequential"`
	ShowHints          bool `json:"showHints"`
	ShowAnswers        bool `json:"showAnswers"`
}

type questionView struct {
	ID          int             `json:"id"`
	Points      int             `json:"points"`
	MaxAttempts int             `json:"maxAttempts"`
	Components  []componentView `json:"components"`
}

type componentView struct {
	ID      int                  `json:"id"`
	Kind    domain.ComponentKind `json:"kind"`
	Prompt  string               `json:"prompt,omitempty"`
	Options []string             `json:"options,omitempty"`
}

// ServeWS upgrades HTTP requests to websockets and wires them into the
// quiz-taking use cases. Entering over the socket is the entrance flow: it
// issues the access credential used by every message that follows.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("sessionId")
	respondentID := r.URL.Query().Get("respondentId")
	displayName := r.URL.Query().Get("name")
	email := r.URL.Query().Get("email")
	if sessionID == "" || respondentID == "" || displayName == "" {
		http.Error(w, "missing sessionId, respondentId, or name", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	entered, err := h.service.Enter(r.Context(), sessionID, respondentID, displayName, email)
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
		return
	}
	token := entered.Token

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}
		}
	}()

	if entered.Session.Settings.LeaderboardEnabled {
		updates, cancel, serr := h.service.Subscribe(r.Context(), sessionID)
		if serr != nil {
			log.Printf("leaderboard subscribe: %v", serr)
			close(updatesDone)
		} else {
			defer cancel()
			go func() {
				defer close(updatesDone)
				for {
					select {
					case update, ok := <-updates:
						if !ok {
							return
						}
						select {
						case send <- outboundMessage[any]{Type: "leaderboard", Payload: update}:
						case <-closeSignals:
							return
						}
					case <-closeSignals:
						return
					}
				}
			}()
		}
	} else {
		close(updatesDone)
	}
	defer h.service.Leave(r.Context(), sessionID, respondentID)

	send <- outboundMessage[any]{Type: "entered", Payload: enteredPayload{
		Token:      token,
		ResponseID: entered.ResponseID,
		Session:    viewOfSession(entered.Session),
		Progress:   viewOfProgress(entered.Response),
	}}

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		switch inbound.Type {
		case "answer":
			var payload answerPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				send <- errMsg("invalid answer payload")
				continue
			}
			if err := h.service.UpdateAnswer(r.Context(), sessionID, respondentID, token, payload.QuestionID, payload.ComponentID, payload.Value); err != nil {
				send <- errMsg(err.Error())
			}
		case "submitQuestion":
			var payload questionPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				send <- errMsg("invalid submit payload")
				continue
			}
			res, err := h.service.SubmitQuestion(r.Context(), sessionID, respondentID, token, payload.QuestionID)
			if err != nil {
				send <- submitError(err)
				continue
			}
			send <- outboundMessage[any]{Type: "questionResult", Payload: res}
		case "submitAll":
			sum, err := h.service.SubmitAll(r.Context(), sessionID, respondentID, token)
			if err != nil {
				send <- submitError(err)
				continue
			}
			send <- outboundMessage[any]{Type: "completed", Payload: sum}
		case "startTimer":
			var payload questionPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				send <- errMsg("invalid timer payload")
				continue
			}
			if err := h.service.StartTimer(r.Context(), sessionID, respondentID, token, payload.QuestionID); err != nil {
				send <- errMsg(err.Error())
			}
		case "pauseTimer":
			if err := h.service.PauseTimer(r.Context(), sessionID, respondentID, token); err != nil {
				send <- errMsg(err.Error())
			}
		case "visibility":
			var payload visibilityPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				send <- errMsg("invalid visibility payload")
				continue
			}
			if err := h.service.SetVisibility(r.Context(), sessionID, respondentID, token, payload.Hidden); err != nil {
				send <- errMsg(err.Error())
			}
		default:
			send <- errMsg("unsupported message type")
		}
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
}

func errMsg(message string) outboundMessage[any] {
	return outboundMessage[any]{Type: "error", Payload: errorPayload{Message: message}}
}

// submitError distinguishes the deadline overlay and validation warnings
// from plain errors.
func submitError(err error) outboundMessage[any] {
	var required *domain.RequiredAnswersError
	switch {
	case errors.Is(err, domain.ErrDeadlinePassed):
		return outboundMessage[any]{Type: "deadline", Payload: errorPayload{Message: err.Error()}}
	case errors.As(err, &required):
		return outboundMessage[any]{Type: "validation", Payload: validationPayload{
			QuestionID: required.QuestionID,
			Missing:    required.Missing,
		}}
	default:
		return errMsg(err.Error())
	}
}

func viewOfSession(session domain.Session) sessionView {
	questions := make([]questionView, 0, len(session.Questions))
	for _, q := range session.Questions {
		comps := make([]componentView, 0, len(q.Components))
		for _, c := range q.Components {
			comps = append(comps, componentView{
				ID:      c.ID,
				Kind:    c.Kind,
				Prompt:  c.Prompt,
				Options: c.Options,
			})
		}
		questions = append(questions, questionView{
			ID:          q.ID,
			Points:      q.PointValue(),
			MaxAttempts: q.AttemptCap(),
			Components:  comps,
		})
	}
	return sessionView{
		ID:        session.ID,
		FormID:    session.FormID,
		Deadline:  session.Deadline,
		Questions: questions,
		Settings: settingsView{
			LeaderboardEnabled: session.Settings.LeaderboardEnabled,
			Sequential:         session.Settings.Sequential,
			ShowHints:          session.Settings.ShowHints,
			ShowAnswers:        session.Settings.ShowAnswers,
		},
	}
}

func viewOfProgress(resp domain.Response) progressView {
	return progressView{
		Attempts: resp.Attempts,
		Scores:   resp.Scores,
		Verdicts: resp.Verdicts,
		Total:    resp.Total,
		Times:    resp.Times,
		Status:   resp.Status,
	}
}
