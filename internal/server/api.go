package server

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"regexp"
	"time"

	"github.com/sjawhar/callwatch/internal/export"
	"github.com/sjawhar/callwatch/internal/session"
	"github.com/sjawhar/callwatch/internal/storage"
)

var (
	callIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
	datePattern   = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type CallStore interface {
	GetCallsByDate(date string) ([]storage.Call, error)
	GetCall(id string) (storage.CallDetail, error)
	GetDates() ([]string, error)
}

// callView is the live dashboard state as served over REST.
type callView struct {
	State            session.State        `json:"state"`
	Session          *session.CallSession `json:"session,omitempty"`
	Report           *reportView          `json:"report,omitempty"`
	Capabilities     session.Capabilities `json:"capabilities"`
	ChannelConnected bool                 `json:"channel_connected"`
}

func newCallView(snap session.Snapshot) callView {
	view := callView{
		State:            snap.State,
		Session:          snap.Session,
		Capabilities:     snap.Capabilities,
		ChannelConnected: snap.ChannelConnected,
	}
	if snap.Report != nil {
		rv := newReportView(snap.Report)
		view.Report = &rv
	}
	return view
}

func registerAPIRoutes(mux *http.ServeMux, store CallStore, controls ControlHooks) {
	mux.HandleFunc("GET /api/call", func(w http.ResponseWriter, r *http.Request) {
		if controls.Snapshot == nil {
			writeJSON(w, http.StatusOK, callView{State: session.StateIdle})
			return
		}
		writeJSON(w, http.StatusOK, newCallView(controls.Snapshot()))
	})

	registerAction(mux, "accept", controls, session.Accepted)
	registerAction(mux, "decline", controls, session.Declined)
	registerAction(mux, "hangup", controls, session.HungUp)

	mux.HandleFunc("GET /api/status", func(w http.ResponseWriter, r *http.Request) {
		var warnings []string
		if controls.Warnings != nil {
			warnings = controls.Warnings()
		}
		if warnings == nil {
			warnings = []string{}
		}

		status := map[string]any{
			"warnings":          warnings,
			"state":             session.StateIdle,
			"device_ready":      false,
			"channel_connected": false,
		}
		if controls.Snapshot != nil {
			snap := controls.Snapshot()
			status["state"] = snap.State
			status["device_ready"] = snap.Capabilities.DeviceReady
			status["channel_connected"] = snap.ChannelConnected
		}
		writeJSON(w, http.StatusOK, status)
	})

	mux.HandleFunc("GET /api/calls", func(w http.ResponseWriter, r *http.Request) {
		date, ok := dateParam(w, r)
		if !ok {
			return
		}

		calls, err := store.GetCallsByDate(date)
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("list calls: %v", err))
			return
		}

		writeJSON(w, http.StatusOK, calls)
	})

	mux.HandleFunc("GET /api/calls/{id}", func(w http.ResponseWriter, r *http.Request) {
		callID := r.PathValue("id")
		if !validCallID(callID) {
			writeJSONError(w, http.StatusForbidden, "invalid call id")
			return
		}

		detail, err := store.GetCall(callID)
		if err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, os.ErrNotExist) || errors.Is(err, sql.ErrNoRows) {
				status = http.StatusNotFound
			}
			writeJSONError(w, status, fmt.Sprintf("get call: %v", err))
			return
		}

		resp := map[string]any{
			"call":       detail.Call,
			"transcript": detail.Transcript,
		}
		if detail.Report != nil {
			resp["report"] = newReportView(detail.Report)
		}
		writeJSON(w, http.StatusOK, resp)
	})

	mux.HandleFunc("GET /api/dates", func(w http.ResponseWriter, r *http.Request) {
		dates, err := store.GetDates()
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("get dates: %v", err))
			return
		}
		if dates == nil {
			dates = []string{}
		}
		writeJSON(w, http.StatusOK, dates)
	})

	mux.HandleFunc("GET /api/export", func(w http.ResponseWriter, r *http.Request) {
		date, ok := dateParam(w, r)
		if !ok {
			return
		}

		calls, err := store.GetCallsByDate(date)
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("list calls: %v", err))
			return
		}
		details := make([]storage.CallDetail, 0, len(calls))
		for _, call := range calls {
			detail, err := store.GetCall(call.ID)
			if err != nil {
				writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("get call %s: %v", call.ID, err))
				return
			}
			details = append(details, detail)
		}

		var buf bytes.Buffer
		if err := export.Write(&buf, details); err != nil {
			writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("export: %v", err))
			return
		}

		w.Header().Set("Content-Type", xlsxContentType)
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="callwatch-%s.xlsx"`, date))
		_, _ = buf.WriteTo(w)
	})
}

// registerAction wires an operator action. The action goes through the
// event router and its answer decides the status code.
func registerAction(mux *http.ServeMux, name string, controls ControlHooks, event func() session.Event) {
	mux.HandleFunc("POST /api/call/"+name, func(w http.ResponseWriter, r *http.Request) {
		if controls.Submit == nil {
			writeJSONError(w, http.StatusServiceUnavailable, "controller unavailable")
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
		defer cancel()

		if err := controls.Submit(ctx, event()); err != nil {
			writeJSONError(w, statusForActionError(err), err.Error())
			return
		}

		if controls.Snapshot == nil {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		writeJSON(w, http.StatusOK, newCallView(controls.Snapshot()))
	})
}

func statusForActionError(err error) int {
	switch {
	case errors.Is(err, session.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, session.ErrDeviceUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func dateParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	date := r.URL.Query().Get("date")
	if date == "" {
		return time.Now().UTC().Format("2006-01-02"), true
	}
	if !datePattern.MatchString(date) {
		writeJSONError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return "", false
	}
	return date, true
}

func validCallID(id string) bool {
	return callIDPattern.MatchString(id)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
