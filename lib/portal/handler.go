// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package portal

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"

	"github.com/google/uuid"

	"github.com/bureau-foundation/secret-portal/lib/envfile"
	"github.com/bureau-foundation/secret-portal/lib/secret"
)

// deniedBody is the only response a refused request ever sees. Wrong
// tokens, consumed sessions, expired sessions, and unknown routes are
// indistinguishable to the client.
const deniedBody = `<!DOCTYPE html>
<html lang="en"><head><meta charset="UTF-8"><title>secret portal</title>
<style>body{font-family:sans-serif;background:#0d1117;color:#8b949e;display:flex;align-items:center;justify-content:center;min-height:100vh;margin:0}</style>
</head><body><p>invalid or expired link</p></body></html>
`

const contentSecurityPolicy = "default-src 'none'; " +
	"style-src 'unsafe-inline'; script-src 'unsafe-inline'; connect-src 'self'; " +
	"img-src 'self' data: https:; form-action 'none'; frame-ancestors 'none'; base-uri 'none'"

type loggerKey struct{}

func requestLogger(r *http.Request) *slog.Logger {
	if logger, ok := r.Context().Value(loggerKey{}).(*slog.Logger); ok {
		return logger
	}
	return slog.Default()
}

// withRequestScope tags every request with a correlation id and sets
// the headers shared by all responses. The URL path carries the token,
// so only the method and the route name are logged.
func (s *Server) withRequestScope(route string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.NewString()
		header := w.Header()
		header.Set("X-Request-Id", requestID)
		header.Set("Cache-Control", "no-store")
		header.Set("Pragma", "no-cache")
		header.Set("Referrer-Policy", "no-referrer")
		header.Set("X-Content-Type-Options", "nosniff")
		header.Set("X-Frame-Options", "DENY")
		header.Set("Content-Security-Policy", contentSecurityPolicy)

		logger := s.logger.With("request_id", requestID, "method", r.Method, "route", route)
		next(w, r.WithContext(context.WithValue(r.Context(), loggerKey{}, logger)))
	}
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{token}", s.withRequestScope("page", s.handlePage))
	mux.HandleFunc("POST /{token}/submit", s.withRequestScope("submit", s.handleSubmit))
	mux.HandleFunc("/", s.withRequestScope("unknown", func(w http.ResponseWriter, r *http.Request) {
		s.deny(w, r, errUnknownRoute)
	}))
	return mux
}

var errUnknownRoute = errors.New("unknown route")

// deny writes the uniform refusal. reason is for the server log only.
func (s *Server) deny(w http.ResponseWriter, r *http.Request, reason error) {
	requestLogger(r).Warn("request denied", "reason", reason.Error())
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusForbidden)
	io.WriteString(w, deniedBody)
}

func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	if err := s.guard.Reason(r.PathValue("token")); err != nil {
		s.deny(w, r, err)
		return
	}
	body, err := s.page.render(r.URL.Path + "/submit")
	if err != nil {
		requestLogger(r).Error("page render failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(body)
	requestLogger(r).Info("form served")
}

type submitResponse struct {
	OK    bool     `json:"ok"`
	Count int      `json:"count,omitempty"`
	Keys  []string `json:"keys,omitempty"`
	Error string   `json:"error,omitempty"`
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	logger := requestLogger(r)
	token := r.PathValue("token")
	if err := s.guard.Reason(token); err != nil {
		s.deny(w, r, err)
		return
	}

	if contentType := r.Header.Get("Content-Type"); contentType != "" {
		mediaType, _, err := mime.ParseMediaType(contentType)
		if err != nil || mediaType != "application/json" {
			s.reject(w, r, malformed("submission must be sent as application/json", nil))
			return
		}
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxSubmissionSize))
	defer secret.Zero(body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.reject(w, r, malformed("submission is too large", err))
			return
		}
		logger.Warn("reading submission failed", "error", err)
		s.reject(w, r, malformed("submission could not be read", err))
		return
	}

	entries, err := decodeSubmission(body)
	if err != nil {
		s.reject(w, r, err)
		return
	}
	if err := restrictToKey(entries, s.singleKey); err != nil {
		s.reject(w, r, err)
		return
	}

	// Consume re-checks the token under the session lock; of any
	// concurrent submissions exactly one gets past this point.
	if err := s.guard.Consume(token); err != nil {
		s.deny(w, r, err)
		return
	}

	result, err := s.store.Merge(s.envPath, entries)
	s.settle(result, err)
	if err != nil {
		attrs := []any{"error", err}
		var persistence *envfile.PersistenceError
		if errors.As(err, &persistence) {
			attrs = append(attrs, "kind", persistence.Kind.String())
		}
		logger.Error("saving submission failed", attrs...)
		writeJSON(w, http.StatusInternalServerError, submitResponse{
			Error: "the secrets could not be saved on the server; check the portal's log",
		})
		return
	}

	logger.Info("submission saved",
		"path", result.Path,
		"count", result.Written,
		"added", result.Added,
		"updated", result.Updated,
	)
	writeJSON(w, http.StatusOK, submitResponse{
		OK:    true,
		Count: result.Written,
		Keys:  append(append([]string(nil), result.Added...), result.Updated...),
	})
}

// reject answers a malformed submission. The session stays Armed so the
// visitor can correct the form and try again.
func (s *Server) reject(w http.ResponseWriter, r *http.Request, err error) {
	message := err.Error()
	var submission *SubmissionError
	if errors.As(err, &submission) {
		message = submission.Message
	}
	requestLogger(r).Info("submission rejected", "reason", message)
	writeJSON(w, http.StatusBadRequest, submitResponse{Error: message})
}

func writeJSON(w http.ResponseWriter, status int, response submitResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(response)
}
