package schedule

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/rpattn/dropfeed/internal/transfer"
)

type runResponse struct {
	Report  transfer.RunReport `json:"report"`
	Skipped []string           `json:"skipped,omitempty"`
	Failed  bool               `json:"failed"`
	Errors  []string           `json:"errors,omitempty"`
}

// Handler triggers transfers on demand: POST /run for every entity and
// POST /run/{entity} for one.
type Handler struct {
	scheduler *Scheduler
}

// NewHTTPHandler exposes the scheduler's manual triggers. The handler expects to be
// mounted at /run and /run/.
func NewHTTPHandler(scheduler *Scheduler) http.Handler {
	return &Handler{scheduler: scheduler}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	name := strings.Trim(strings.TrimPrefix(r.URL.Path, "/run"), "/")
	if name == "" {
		report, skipped := h.scheduler.TriggerAll()
		writeJSON(w, http.StatusOK, newRunResponse(report, skipped))
		return
	}

	report, err := h.scheduler.TriggerEntity(name)
	switch {
	case errors.Is(err, ErrUnknownEntity):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, ErrAlreadyRunning):
		http.Error(w, err.Error(), http.StatusConflict)
	case err != nil:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	default:
		writeJSON(w, http.StatusOK, newRunResponse(report, nil))
	}
}

func newRunResponse(report transfer.RunReport, skipped []string) runResponse {
	resp := runResponse{Report: report, Skipped: skipped, Failed: report.HasFailures()}
	for _, entity := range report.Entities {
		if entity.Err != nil {
			resp.Errors = append(resp.Errors, entity.Err.Error())
		}
		for _, file := range entity.Failures() {
			resp.Errors = append(resp.Errors, file.Err.Error())
		}
	}
	return resp
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(payload)
}
