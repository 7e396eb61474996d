package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/battlewithbytes/lxd-console/internal/actions"
	"github.com/battlewithbytes/lxd-console/internal/cache"
	"github.com/battlewithbytes/lxd-console/internal/lxd"
	"github.com/battlewithbytes/lxd-console/internal/version"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeDaemonError maps action and daemon errors to a response.
func writeDaemonError(w http.ResponseWriter, err error) {
	var apiErr *lxd.Error
	switch {
	case actions.IsValidation(err):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, actions.ErrISOAttached), errors.Is(err, actions.ErrNoISO):
		writeError(w, http.StatusConflict, err.Error())
	case lxd.IsCancelled(err):
		writeError(w, http.StatusRequestTimeout, "request cancelled")
	case errors.As(err, &apiErr):
		status := apiErr.StatusCode
		if status < 400 || status > 599 {
			status = http.StatusBadGateway
		}
		msg := apiErr.Message
		if msg == "" {
			msg = http.StatusText(status)
		}
		writeError(w, status, msg)
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// decodeBody decodes an optional JSON body into v.
func decodeBody(r *http.Request, v interface{}) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	return json.NewDecoder(r.Body).Decode(v)
}

func listLimit(r *http.Request) int {
	n, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || n <= 0 {
		return defaultListLimit
	}
	if n > maxListLimit {
		return maxListLimit
	}
	return n
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"version": version.Version,
		"project": s.cfg.LXD.Project,
		"events":  s.cfg.Events.Mode,
		"pending": s.queue.Len(),
	})
}

func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	srv, err := cache.Load(r.Context(), s.cache, []string{cache.Settings}, s.daemon.GetServer)
	if err != nil {
		writeDaemonError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, srv)
}
