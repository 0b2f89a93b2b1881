// Package handler serves record writes over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/Adithya-Monish-Kumar-K/compliance-search/internal/indexer/consumer"
	"github.com/Adithya-Monish-Kumar-K/compliance-search/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/compliance-search/internal/ingestion/validator"
	"github.com/Adithya-Monish-Kumar-K/compliance-search/internal/records"
	apperrors "github.com/Adithya-Monish-Kumar-K/compliance-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/compliance-search/pkg/logger"
)

// maxBody caps a single record upload.
const maxBody = 2 << 20

type Submitter interface {
	Submit(ctx context.Context, ev consumer.RecordEvent) (*ingestion.Response, error)
}

type Handler struct {
	submitter Submitter
	logger    *slog.Logger
}

func New(s Submitter) *Handler {
	return &Handler{
		submitter: s,
		logger:    slog.Default().With("component", "ingestion-handler"),
	}
}

func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("PUT /api/v1/records/{type}", h.Put)
	mux.HandleFunc("DELETE /api/v1/records/{type}/{key}", h.Delete)
}

// Put upserts the record in the body, keyed by the record's own key field.
func (h *Handler) Put(w http.ResponseWriter, r *http.Request) {
	rt, err := records.ParseType(r.PathValue("type"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	body := http.MaxBytesReader(w, r.Body, maxBody)
	ev := consumer.RecordEvent{Op: consumer.OpUpsert, RecordType: string(rt)}
	switch rt {
	case records.TypeTask:
		ev.Task, err = decode[records.Task](body)
		if err == nil {
			ev.Key = ev.Task.Key
		}
	case records.TypeTeam:
		ev.Member, err = decode[records.TeamMember](body)
		if err == nil {
			ev.Key = ev.Member.Email
		}
	case records.TypeLegislation:
		ev.Legislation, err = decode[records.LegislationReference](body)
		if err == nil {
			ev.Key = ev.Legislation.Code
		}
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.submit(w, r, ev)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	rt, err := records.ParseType(r.PathValue("type"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.submit(w, r, consumer.RecordEvent{
		Op:         consumer.OpDelete,
		RecordType: string(rt),
		Key:        r.PathValue("key"),
	})
}

func decode[T any](body io.Reader) (*T, error) {
	v := new(T)
	if err := json.NewDecoder(body).Decode(v); err != nil {
		return nil, fmt.Errorf("%w: invalid JSON body: %v", apperrors.ErrInvalidInput, err)
	}
	return v, nil
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request, ev consumer.RecordEvent) {
	if err := validator.ValidateEvent(ev); err != nil {
		h.fail(w, r, err)
		return
	}
	resp, err := h.submitter.Submit(r.Context(), ev)
	if err != nil {
		h.fail(w, r, fmt.Errorf("%s %s %s: %w", ev.Op, ev.RecordType, ev.Key, err))
		return
	}
	logger.FromContext(r.Context()).Info("record written",
		"op", resp.Op, "record_type", resp.RecordType, "key", resp.Key, "status", resp.Status)

	code := http.StatusOK
	if resp.Status == ingestion.StatusAccepted {
		code = http.StatusAccepted
	}
	h.writeJSON(w, code, resp)
}

// fail writes err as a JSON error. Validation failures list the offending
// fields; server-side failures are logged and their detail withheld.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	code, msg := apperrors.Public(err)
	body := map[string]any{"error": msg}
	var ve *validator.ValidationError
	if errors.As(err, &ve) {
		body = map[string]any{"error": "validation failed", "fields": ve.Fields}
	}
	if code >= http.StatusInternalServerError {
		logger.FromContext(r.Context()).Error("record write failed", "status_code", code, "error", err)
	}
	h.writeJSON(w, code, body)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}
