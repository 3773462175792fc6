package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"classroom-service/internal/app"
	"classroom-service/internal/domain"
	"classroom-service/internal/persist"
	"classroom-service/internal/remote"
	log "github.com/sirupsen/logrus"
)

// RemoteConnector is the slice of the remote client the API drives.
type RemoteConnector interface {
	Connect(ctx context.Context, cfg remote.Config) error
	Status() remote.Status
}

// API exposes the classroom use cases over JSON.
type API struct {
	classroom  *app.ClassroomService
	curriculum *app.CurriculumService
	activities *app.ActivityService
	remote     RemoteConnector
	kv         persist.KV
	auth       *Authenticator
}

func NewAPI(classroom *app.ClassroomService, curriculum *app.CurriculumService, activities *app.ActivityService, remote RemoteConnector, kv persist.KV, auth *Authenticator) *API {
	return &API{
		classroom:  classroom,
		curriculum: curriculum,
		activities: activities,
		remote:     remote,
		kv:         kv,
		auth:       auth,
	}
}

// Register mounts every route on mux.
func (a *API) Register(mux *http.ServeMux) {
	admin := a.auth.RequireAdmin

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("GET /api/status", a.status)
	mux.HandleFunc("POST /api/admin/login", a.login)

	mux.HandleFunc("POST /api/sessions", admin(a.startSession))
	mux.HandleFunc("DELETE /api/sessions", admin(a.endSession))
	mux.HandleFunc("GET /api/sessions/board", admin(a.board))
	mux.HandleFunc("POST /api/sessions/draw", admin(a.draw))
	mux.HandleFunc("POST /api/sessions/absent", admin(a.absent))
	mux.HandleFunc("POST /api/sessions/timer", admin(a.startTimer))
	mux.HandleFunc("POST /api/sessions/resolve", admin(a.resolve))
	mux.HandleFunc("POST /api/sessions/reset", admin(a.reset))
	mux.HandleFunc("GET /api/leaderboard", admin(a.leaderboard))

	mux.HandleFunc("GET /api/records", admin(a.records))
	mux.HandleFunc("DELETE /api/records/{id}", admin(a.deleteRecord))

	mux.HandleFunc("GET /api/curriculum", admin(a.getCurriculum))
	mux.HandleFunc("PUT /api/curriculum", admin(a.putCurriculum))
	mux.HandleFunc("PUT /api/curriculum/{grade}/students", admin(a.putStudent))
	mux.HandleFunc("POST /api/curriculum/{grade}/baseline", admin(a.baseline))

	mux.HandleFunc("PUT /api/admin/remote", admin(a.configureRemote))
	mux.HandleFunc("POST /api/admin/sync", admin(a.sync))

	mux.HandleFunc("POST /api/activities", a.recordActivity)
	mux.HandleFunc("GET /api/activities", admin(a.listActivities))
}

type startSessionRequest struct {
	Date   string `json:"date"`
	Period int    `json:"period"`
	Grade  string `json:"grade"`
}

type resolveRequest struct {
	Correct bool `json:"correct"`
}

type resolveResponse struct {
	Resolution app.Resolution `json:"resolution"`
	Board      app.Board      `json:"board"`
}

type resetResponse struct {
	Removed int       `json:"removed"`
	Board   app.Board `json:"board"`
}

type loginRequest struct {
	Passphrase string `json:"passphrase"`
}

type baselineRequest struct {
	Name         string              `json:"name"`
	MasteryLevel domain.MasteryLevel `json:"masteryLevel"`
}

const storageFullMessage = "Local storage is full. The change is kept for this session but was not saved; free space before continuing."

type errorPayload struct {
	Message string              `json:"message"`
	Fields  []domain.FieldError `json:"fields,omitempty"`
}

func (a *API) status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.remote.Status())
}

func (a *API) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decode(w, r, &req) {
		return
	}
	token, expires, err := a.auth.Login(req.Passphrase)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"token": token, "expiresAt": expires})
}

func (a *API) startSession(w http.ResponseWriter, r *http.Request) {
	var req startSessionRequest
	if !decode(w, r, &req) {
		return
	}
	board, err := a.classroom.StartSession(r.Context(), req.Date, req.Period, req.Grade)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, board)
}

func (a *API) endSession(w http.ResponseWriter, r *http.Request) {
	scope, ok := scopeFromQuery(w, r)
	if !ok {
		return
	}
	if err := a.classroom.EndSession(r.Context(), scope); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) board(w http.ResponseWriter, r *http.Request) {
	a.boardAction(w, r, a.classroom.Board)
}

func (a *API) draw(w http.ResponseWriter, r *http.Request) {
	a.boardAction(w, r, a.classroom.Draw)
}

func (a *API) absent(w http.ResponseWriter, r *http.Request) {
	a.boardAction(w, r, a.classroom.MarkAbsent)
}

func (a *API) startTimer(w http.ResponseWriter, r *http.Request) {
	a.boardAction(w, r, a.classroom.StartTimer)
}

func (a *API) boardAction(w http.ResponseWriter, r *http.Request, fn func(context.Context, domain.SessionScope) (app.Board, error)) {
	scope, ok := scopeFromQuery(w, r)
	if !ok {
		return
	}
	board, err := fn(r.Context(), scope)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, board)
}

func (a *API) resolve(w http.ResponseWriter, r *http.Request) {
	scope, ok := scopeFromQuery(w, r)
	if !ok {
		return
	}
	var req resolveRequest
	if !decode(w, r, &req) {
		return
	}
	res, board, err := a.classroom.Resolve(r.Context(), scope, req.Correct)
	if errors.Is(err, domain.ErrStorageFull) {
		// the result stands in memory; the console must still show it
		writeJSON(w, http.StatusInsufficientStorage, struct {
			errorPayload
			resolveResponse
		}{errorPayload{Message: storageFullMessage}, resolveResponse{Resolution: res, Board: board}})
		return
	}
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resolveResponse{Resolution: res, Board: board})
}

func (a *API) reset(w http.ResponseWriter, r *http.Request) {
	scope, ok := scopeFromQuery(w, r)
	if !ok {
		return
	}
	board, removed, err := a.classroom.ResetSession(r.Context(), scope)
	if errors.Is(err, domain.ErrStorageFull) {
		writeJSON(w, http.StatusInsufficientStorage, struct {
			errorPayload
			resetResponse
		}{errorPayload{Message: storageFullMessage}, resetResponse{Removed: removed, Board: board}})
		return
	}
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resetResponse{Removed: removed, Board: board})
}

func (a *API) leaderboard(w http.ResponseWriter, r *http.Request) {
	scope, ok := scopeFromQuery(w, r)
	if !ok {
		return
	}
	lb, err := a.classroom.Leaderboard(r.Context(), scope)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, lb)
}

func (a *API) records(w http.ResponseWriter, r *http.Request) {
	var scope *domain.SessionScope
	if r.URL.Query().Get("date") != "" {
		sc, ok := scopeFromQuery(w, r)
		if !ok {
			return
		}
		scope = &sc
	}
	records, err := a.classroom.Records(r.Context(), scope)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if records == nil {
		records = []domain.ParticipationRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

func (a *API) deleteRecord(w http.ResponseWriter, r *http.Request) {
	if err := a.classroom.DeleteRecord(r.Context(), r.PathValue("id")); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) getCurriculum(w http.ResponseWriter, r *http.Request) {
	c, err := a.curriculum.Curriculum(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (a *API) putCurriculum(w http.ResponseWriter, r *http.Request) {
	var c domain.Curriculum
	if !decode(w, r, &c) {
		return
	}
	saved, err := a.curriculum.SaveCurriculum(r.Context(), c)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

func (a *API) putStudent(w http.ResponseWriter, r *http.Request) {
	var p domain.StudentProfile
	if !decode(w, r, &p) {
		return
	}
	roster, err := a.curriculum.UpsertStudent(r.Context(), r.PathValue("grade"), p)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, roster)
}

func (a *API) baseline(w http.ResponseWriter, r *http.Request) {
	var req baselineRequest
	if !decode(w, r, &req) {
		return
	}
	roster, err := a.curriculum.RecordBaseline(r.Context(), r.PathValue("grade"), req.Name, req.MasteryLevel)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, roster)
}

func (a *API) configureRemote(w http.ResponseWriter, r *http.Request) {
	blob, err := io.ReadAll(io.LimitReader(r.Body, 64<<10))
	if err != nil {
		writeError(w, http.StatusBadRequest, "read body")
		return
	}
	cfg, err := persist.SaveRemoteConfig(r.Context(), a.kv, blob)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if err := a.remote.Connect(r.Context(), cfg); err != nil {
		log.WithError(err).Warn("remote connect failed; continuing local-only")
	}
	writeJSON(w, http.StatusOK, a.remote.Status())
}

func (a *API) sync(w http.ResponseWriter, r *http.Request) {
	changed, err := a.curriculum.Sync(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"changed": changed})
}

func (a *API) recordActivity(w http.ResponseWriter, r *http.Request) {
	var rec domain.ActivityRecord
	if !decode(w, r, &rec) {
		return
	}
	saved, err := a.activities.Record(r.Context(), rec)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, saved)
}

func (a *API) listActivities(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	records, err := a.activities.Records(r.Context(), app.ActivityFilter{
		StudentName: q.Get("student"),
		Grade:       q.Get("grade"),
		Activity:    q.Get("activity"),
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func scopeFromQuery(w http.ResponseWriter, r *http.Request) (domain.SessionScope, bool) {
	q := r.URL.Query()
	period, err := strconv.Atoi(q.Get("period"))
	if err != nil || q.Get("date") == "" || q.Get("grade") == "" {
		writeError(w, http.StatusBadRequest, "date, grade and numeric period are required")
		return domain.SessionScope{}, false
	}
	return domain.SessionScope{Date: q.Get("date"), Grade: q.Get("grade"), Period: period}, true
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.WithError(err).Warn("write response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorPayload{Message: msg})
}

func writeDomainError(w http.ResponseWriter, err error) {
	var ve *domain.ValidationError
	var pe *remote.ParseError
	switch {
	case errors.As(err, &ve):
		writeJSON(w, http.StatusBadRequest, errorPayload{Message: "validation failed", Fields: ve.Fields})
	case errors.As(err, &pe):
		writeJSON(w, http.StatusBadRequest, errorPayload{Message: pe.Error()})
	case errors.Is(err, domain.ErrSessionNotFound),
		errors.Is(err, domain.ErrRecordNotFound),
		errors.Is(err, domain.ErrGradeNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrPickerBusy),
		errors.Is(err, domain.ErrNoActiveStudent),
		errors.Is(err, domain.ErrTimerRunning),
		errors.Is(err, domain.ErrTimerNotStarted),
		errors.Is(err, domain.ErrNoStudents):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrStorageFull):
		writeError(w, http.StatusInsufficientStorage, storageFullMessage)
	case errors.Is(err, domain.ErrRemoteNotConnected):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		log.WithError(err).Error("request failed")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
