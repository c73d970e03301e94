package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/leapstack-labs/declsql/internal/engine"
	"github.com/leapstack-labs/declsql/pkg/core"
)

// maxBodyBytes bounds request bodies; query documents are small.
const maxBodyBytes = 1 << 20

// errorDetail is one verifier violation in the error envelope.
type errorDetail struct {
	Table   string `json:"table,omitempty"`
	Key     string `json:"key,omitempty"`
	Message string `json:"message"`
}

// errorEnvelope is the error response body.
type errorEnvelope struct {
	Status  string        `json:"status"`
	Code    int           `json:"code"`
	Message string        `json:"message"`
	Errors  []errorDetail `json:"errors,omitempty"`
}

// successEnvelope is the success response body.
type successEnvelope struct {
	Status     string                       `json:"status"`
	Code       int                          `json:"code"`
	Data       map[string]*core.TableResult `json:"data"`
	Directives map[string]any               `json:"directives,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleQuery(verb string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
		if err != nil {
			s.writeError(w, r, core.NewError(core.KindValidation, "", "reading request body: %v", err))
			return
		}
		if len(body) > maxBodyBytes {
			s.writeError(w, r, core.NewError(core.KindOutOfRange, "", "request body exceeds %d bytes", maxBodyBytes))
			return
		}

		identity, err := s.identify(r)
		if err != nil {
			s.writeError(w, r, err)
			return
		}

		result, err := s.eng.Load().Process(r.Context(), engine.Request{
			Body:     body,
			Verb:     strings.ToUpper(verb),
			Identity: identity,
		})
		if err != nil {
			s.writeError(w, r, err)
			return
		}

		s.logger.Info("request served",
			"request_id", requestIDFrom(r.Context()),
			"verb", verb,
			"tables", len(result.Data),
			"duration", time.Since(start))

		writeJSON(w, http.StatusOK, successEnvelope{
			Status:     "ok",
			Code:       http.StatusOK,
			Data:       result.Data,
			Directives: result.Directives,
		})
	}
}

// identify resolves the caller from the Authorization header. No header
// means anonymous; a bad token is an error rather than a silent downgrade.
func (s *Server) identify(r *http.Request) (*core.Identity, error) {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return nil, nil
	}
	token, ok := strings.CutPrefix(auth, "Bearer ")
	if !ok {
		return nil, core.NewError(core.KindNotLoggedIn, "", "authorization header is not a bearer token")
	}
	if s.tokens == nil {
		return nil, core.NewError(core.KindNotLoggedIn, "", "token authentication is not configured")
	}
	return s.tokens.Verify(token)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := core.KindOf(err)
	status := kind.HTTPStatus()

	envelope := errorEnvelope{
		Status:  "error",
		Code:    status,
		Message: err.Error(),
	}

	var verr *engine.ValidationError
	if errors.As(err, &verr) {
		for _, v := range verr.Violations {
			envelope.Errors = append(envelope.Errors, errorDetail{
				Table:   v.Table,
				Key:     v.Key,
				Message: v.Message,
			})
		}
	}

	s.logger.Warn("request failed",
		"request_id", requestIDFrom(r.Context()),
		"kind", kind.String(),
		"status", status,
		"error", err)

	writeJSON(w, status, envelope)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
