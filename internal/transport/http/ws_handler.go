package http

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"live-quiz-service/internal/app"
	"live-quiz-service/internal/domain"
	"live-quiz-service/internal/logger"
)

type WSHandler struct {
	service  *app.LiveService
	log      logrus.FieldLogger
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.LiveService, log logrus.FieldLogger) *WSHandler {
	if log == nil {
		log = logger.Discard()
	}
	return &WSHandler{
		service: service,
		log:     log,
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

type wsJoinPayload struct {
	Nickname string `json:"nickname"`
}

type wsAnswerPayload struct {
	QuestionID   string   `json:"questionId"`
	OptionIDs    []string `json:"optionIds"`
	ResponseTime float64  `json:"responseTime"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func errorMessage(err error) outboundMessage[any] {
	return outboundMessage[any]{Type: "error", Payload: errorPayload{Code: domain.KindOf(err), Message: err.Error()}}
}

// ServeWS upgrades HTTP requests to websockets and streams session events to the client.
// The first message is the session state; events follow in publication order. Clients send
// "join" and "answer" messages; host connections may also send start, advance, showAnswers and end.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("sessionId")
	if sessionID == "" {
		http.Error(w, "missing sessionId", http.StatusBadRequest)
		return
	}
	participantID := r.URL.Query().Get("participantId")
	caller := callerFrom(r)
	if caller.UserID == "" {
		caller.UserID = r.URL.Query().Get("userId")
	}
	log := h.log.WithFields(logrus.Fields{"session_id": sessionID, "participant_id": participantID})

	ctx := r.Context()
	// Subscribe before reading state so nothing published in between is lost.
	events, cancel, err := h.service.Subscribe(ctx, sessionID)
	if err != nil {
		writeJSON(w, statusFor(domain.KindOf(err)), errorBody{Error: errorDetail{Code: domain.KindOf(err), Message: err.Error()}})
		return
	}
	defer cancel()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.WithError(err).Warn("ws upgrade failed")
		return
	}
	defer conn.Close()

	state, err := h.service.State(ctx, sessionID)
	if err != nil {
		_ = conn.WriteJSON(errorMessage(err))
		return
	}

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	eventsDone := make(chan struct{})

	// Only this goroutine writes to conn.
	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.WithError(err).Debug("ws write error")
				_ = conn.Close()
				return
			}
		}
	}()

	send <- outboundMessage[any]{Type: "state", Payload: state}

	go func() {
		defer close(eventsDone)
		for {
			select {
			case ev, ok := <-events:
				if !ok {
					return
				}
				// Events at or below the state's sequence are already reflected in it.
				if ev.Seq != 0 && ev.Seq <= state.LastSeq {
					continue
				}
				select {
				case send <- outboundMessage[any]{Type: "event", Payload: ev}:
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	reply := func(msg outboundMessage[any]) {
		select {
		case send <- msg:
		case <-writerDone:
		}
	}

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		switch inbound.Type {
		case "join":
			var payload wsJoinPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				reply(outboundMessage[any]{Type: "error", Payload: errorPayload{Code: "invalid_request", Message: "invalid join payload"}})
				continue
			}
			p, err := h.service.JoinSession(ctx, sessionID, payload.Nickname)
			if err != nil {
				reply(errorMessage(err))
				continue
			}
			participantID = p.ID
			reply(outboundMessage[any]{Type: "joined", Payload: p})
		case "answer":
			var payload wsAnswerPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				reply(outboundMessage[any]{Type: "error", Payload: errorPayload{Code: "invalid_request", Message: "invalid answer payload"}})
				continue
			}
			res, err := h.service.Answer(ctx, sessionID, participantID, payload.QuestionID, payload.OptionIDs, payload.ResponseTime)
			if err != nil {
				reply(errorMessage(err))
				continue
			}
			reply(outboundMessage[any]{Type: "answerResult", Payload: res})
		case "start", "advance", "showAnswers", "end":
			var cmd hostFunc
			switch inbound.Type {
			case "start":
				cmd = h.service.Start
			case "advance":
				cmd = h.service.Advance
			case "showAnswers":
				cmd = h.service.ShowAnswers
			default:
				cmd = h.service.End
			}
			if _, err := cmd(ctx, caller, sessionID); err != nil {
				reply(errorMessage(err))
			}
		default:
			reply(outboundMessage[any]{Type: "error", Payload: errorPayload{Code: "invalid_request", Message: "unsupported message type"}})
		}
	}

	close(closeSignals)
	<-eventsDone
	close(send)
	<-writerDone
}
