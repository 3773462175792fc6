package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"classroom-service/internal/app"
	"classroom-service/internal/domain"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

const tickInterval = 100 * time.Millisecond

// WSHandler streams a live session to the teacher console and accepts picker commands.
type WSHandler struct {
	service  *app.ClassroomService
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.ClassroomService) *WSHandler {
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

type tickPayload struct {
	ElapsedMs int64 `json:"elapsedMs"`
	Score     int   `json:"score"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

// ServeWS upgrades the request and binds the connection to one session.
// The session must already be started; commands are draw, absent, startTimer, resolve and reset.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	period, err := strconv.Atoi(q.Get("period"))
	if err != nil || q.Get("date") == "" || q.Get("grade") == "" {
		http.Error(w, "missing date, grade, or period", http.StatusBadRequest)
		return
	}
	scope := domain.SessionScope{Date: q.Get("date"), Grade: q.Get("grade"), Period: period}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	updates, cancel, err := h.service.Subscribe(r.Context(), scope)
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
		return
	}
	defer cancel()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})
	tickerDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("ws write error: %v", err)
				// unblock the reader so the handler can unwind
				_ = conn.Close()
				return
			}
		}
	}()

	go func() {
		defer close(updatesDone)
		for {
			select {
			case update, ok := <-updates:
				if !ok {
					// session ended; unblock the reader
					_ = conn.WriteControl(websocket.CloseMessage,
						websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session ended"),
						time.Now().Add(time.Second))
					return
				}
				select {
				case send <- outboundMessage[any]{Type: "board", Payload: update}:
				case <-closeSignals:
					return
				case <-writerDone:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	go func() {
		defer close(tickerDone)
		ticker := time.NewTicker(tickInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				board, err := h.service.Board(r.Context(), scope)
				if err != nil || !board.Picker.Timing {
					continue
				}
				tick := tickPayload{ElapsedMs: board.Picker.ElapsedMs, Score: board.Picker.LiveScore}
				select {
				case send <- outboundMessage[any]{Type: "tick", Payload: tick}:
				case <-closeSignals:
					return
				default:
					// a late tick is worthless
				}
			case <-closeSignals:
				return
			}
		}
	}()

readLoop:
	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		msg, ok := h.dispatch(r, scope, inbound)
		if !ok {
			continue
		}
		select {
		case send <- msg:
		case <-writerDone:
			// the writer is gone; nothing more can reach the client
			break readLoop
		}
	}

	close(closeSignals)
	<-updatesDone
	<-tickerDone
	close(send)
	<-writerDone
}

// dispatch runs one command. Board changes reach the client through the subscription,
// so only errors and resolutions are answered directly.
func (h *WSHandler) dispatch(r *http.Request, scope domain.SessionScope, inbound inboundMessage) (outboundMessage[any], bool) {
	ctx := r.Context()
	var err error
	switch inbound.Type {
	case "draw":
		_, err = h.service.Draw(ctx, scope)
	case "absent":
		_, err = h.service.MarkAbsent(ctx, scope)
	case "startTimer":
		_, err = h.service.StartTimer(ctx, scope)
	case "resolve":
		var payload resolveRequest
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			return errorMessage("invalid resolve payload"), true
		}
		res, _, err := h.service.Resolve(ctx, scope, payload.Correct)
		if errors.Is(err, domain.ErrStorageFull) {
			return errorMessage(storageFullMessage), true
		}
		if err != nil {
			return errorMessage(err.Error()), true
		}
		return outboundMessage[any]{Type: "resolution", Payload: res}, true
	case "reset":
		_, _, err = h.service.ResetSession(ctx, scope)
	default:
		return errorMessage("unsupported message type"), true
	}
	if errors.Is(err, domain.ErrStorageFull) {
		return errorMessage(storageFullMessage), true
	}
	if err != nil {
		return errorMessage(err.Error()), true
	}
	return outboundMessage[any]{}, false
}

func errorMessage(msg string) outboundMessage[any] {
	return outboundMessage[any]{Type: "error", Payload: errorPayload{Message: msg}}
}
