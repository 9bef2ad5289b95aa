package httpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/fairyhunter13/ai-interview-evaluator/internal/config"
	"github.com/fairyhunter13/ai-interview-evaluator/internal/domain"
	"github.com/fairyhunter13/ai-interview-evaluator/internal/usecase"
)

// Server aggregates handler dependencies.
type Server struct {
	Cfg         config.Config
	Sessions    *usecase.SessionService
	DBCheck     func(ctx context.Context) error
	RedisCheck  func(ctx context.Context) error
	QdrantCheck func(ctx context.Context) error
}

// NewServer constructs an HTTP server with all handlers and checks wired.
func NewServer(cfg config.Config, sessions *usecase.SessionService, dbCheck, redisCheck, qdrantCheck func(context.Context) error) *Server {
	return &Server{Cfg: cfg, Sessions: sessions, DBCheck: dbCheck, RedisCheck: redisCheck, QdrantCheck: qdrantCheck}
}

var (
	vldOnce sync.Once
	vld     *validator.Validate
)

func getValidator() *validator.Validate {
	vldOnce.Do(func() { vld = validator.New() })
	return vld
}

// decodeAndValidate decodes a JSON body into req and runs struct validation.
// The body is capped at 1MB.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, req any) error {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		return fmt.Errorf("%w: invalid json", domain.ErrInvalidArgument)
	}
	if err := getValidator().Struct(req); err != nil {
		verrs := map[string]string{}
		if ve, ok := err.(validator.ValidationErrors); ok {
			for _, fe := range ve {
				verrs[strings.ToLower(fe.Field())] = fe.Tag()
			}
		}
		return &validationError{fields: verrs}
	}
	return nil
}

type validationError struct{ fields map[string]string }

func (e *validationError) Error() string { return "validation failed" }
func (e *validationError) Unwrap() error { return domain.ErrInvalidArgument }

type startRequest struct {
	Language        string   `json:"language" validate:"omitempty,bcp47_language_tag"`
	Difficulty      string   `json:"difficulty" validate:"omitempty,oneof=easy medium hard"`
	InterviewerMode string   `json:"interviewer_mode" validate:"omitempty,max=40"`
	Company         string   `json:"company" validate:"omitempty,max=200"`
	Role            string   `json:"role" validate:"required,max=200"`
	JobDescription  string   `json:"job_description" validate:"omitempty,max=10000"`
	ResumeSummary   string   `json:"resume_summary" validate:"omitempty,max=10000"`
	NCSTitles       []string `json:"ncs_titles" validate:"omitempty,max=10,dive,max=200"`
}

// StartHandler plans a new interview session and returns its first question.
func (s *Server) StartHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req startRequest
		if err := decodeAndValidate(w, r, &req); err != nil {
			writeValidation(w, r, err)
			return
		}
		sess, first, err := s.Sessions.StartSession(r.Context(), usecase.StartInput{
			Language:        req.Language,
			Difficulty:      req.Difficulty,
			InterviewerMode: req.InterviewerMode,
			Context: domain.SessionContext{
				Company:        req.Company,
				Role:           req.Role,
				JobDescription: req.JobDescription,
				ResumeSummary:  req.ResumeSummary,
				NCSTitles:      req.NCSTitles,
			},
		})
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{
			"session_id": sess.ID,
			"next":       first,
		})
	}
}

type answerRequest struct {
	SessionID string `json:"session_id" validate:"required,uuid4"`
	Answer    string `json:"answer" validate:"required,max=20000"`
}

// AnswerHandler submits one candidate answer, returning the evaluation
// feedback and the next question.
func (s *Server) AnswerHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req answerRequest
		if err := decodeAndValidate(w, r, &req); err != nil {
			writeValidation(w, r, err)
			return
		}
		out, err := s.Sessions.SubmitAnswer(r.Context(), req.SessionID, req.Answer)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		resp := map[string]any{
			"answered_question_id": out.AnsweredLabel,
			"feedback":             out.Dossier.Feedback,
			"followups_queued":     out.FollowupsQueued,
			"next":                 out.Next,
		}
		if out.Recovery != "" {
			resp["interviewer_note"] = out.Recovery
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

type sessionRequest struct {
	SessionID string `json:"session_id" validate:"required,uuid4"`
}

// NextHandler re-reads the current question without submitting anything.
func (s *Server) NextHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req sessionRequest
		if err := decodeAndValidate(w, r, &req); err != nil {
			writeValidation(w, r, err)
			return
		}
		next, err := s.Sessions.Current(r.Context(), req.SessionID)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, next)
	}
}

// FinishHandler closes the session and assembles its report. Finishing an
// already finished session returns the stored report.
func (s *Server) FinishHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req sessionRequest
		if err := decodeAndValidate(w, r, &req); err != nil {
			writeValidation(w, r, err)
			return
		}
		rep, err := s.Sessions.FinishSession(r.Context(), req.SessionID)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, rep)
	}
}

// ReportHandler returns the report of a finished session.
func (s *Server) ReportHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if id == "" {
			writeError(w, r, fmt.Errorf("%w: id missing", domain.ErrInvalidArgument), nil)
			return
		}
		rep, err := s.Sessions.GetReport(r.Context(), id)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, rep)
	}
}

// HealthzHandler reports process liveness.
func (s *Server) HealthzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// ReadyzHandler probes DB, Redis and Qdrant.
func (s *Server) ReadyzHandler() http.HandlerFunc {
	type check struct {
		Name    string `json:"name"`
		OK      bool   `json:"ok"`
		Details string `json:"details,omitempty"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		checks := make([]check, 0, 3)
		probe := func(name string, fn func(context.Context) error) {
			if fn == nil {
				return
			}
			if err := fn(ctx); err != nil {
				checks = append(checks, check{Name: name, OK: false, Details: err.Error()})
			} else {
				checks = append(checks, check{Name: name, OK: true})
			}
		}
		probe("db", s.DBCheck)
		probe("redis", s.RedisCheck)
		probe("qdrant", s.QdrantCheck)

		st := http.StatusOK
		for _, c := range checks {
			if !c.OK {
				st = http.StatusServiceUnavailable
				break
			}
		}
		writeJSON(w, st, map[string]any{"checks": checks})
	}
}

func writeValidation(w http.ResponseWriter, r *http.Request, err error) {
	if ve, ok := err.(*validationError); ok {
		writeError(w, r, fmt.Errorf("%w: validation failed", domain.ErrInvalidArgument), ve.fields)
		return
	}
	writeError(w, r, err, nil)
}
