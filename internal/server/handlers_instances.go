package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/battlewithbytes/lxd-console/internal/actions"
	"github.com/battlewithbytes/lxd-console/internal/cache"
	"github.com/battlewithbytes/lxd-console/internal/lxd"
)

// listSegment keeps list keys apart from detail keys, which carry an
// instance name in the same position. Instance names cannot contain it.
const listSegment = "*"

// operationResponse is returned by every action endpoint. Tracked is false
// when the daemon's response named no instance and nothing waits on the id.
type operationResponse struct {
	Operation string `json:"operation"`
	Instance  string `json:"instance,omitempty"`
	Tracked   bool   `json:"tracked"`
}

func writeOperation(w http.ResponseWriter, op *lxd.Operation, instance string, tracked bool) {
	writeJSON(w, http.StatusAccepted, operationResponse{Operation: op.ID, Instance: instance, Tracked: tracked})
}

// filterInstances applies the list page's search box and dropdowns.
func filterInstances(list []lxd.Instance, query, status, typ string) []lxd.Instance {
	query = strings.ToLower(query)
	out := make([]lxd.Instance, 0, len(list))
	for _, inst := range list {
		if query != "" && !strings.Contains(strings.ToLower(inst.Name), query) &&
			!strings.Contains(strings.ToLower(inst.Description), query) {
			continue
		}
		if status != "" && !strings.EqualFold(inst.Status, status) {
			continue
		}
		if typ != "" && inst.Type != typ {
			continue
		}
		out = append(out, inst)
	}
	return out
}

func (s *Server) handleListInstances(w http.ResponseWriter, r *http.Request) {
	project := s.project(r)
	list, err := cache.Load(r.Context(), s.cache, []string{cache.Instances, listSegment, project},
		func(ctx context.Context) ([]lxd.Instance, error) { return s.daemon.ListInstances(ctx, project) })
	if err != nil {
		writeDaemonError(w, err)
		return
	}

	q := r.URL.Query()
	instances := filterInstances(list, q.Get("q"), q.Get("status"), q.Get("type"))
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"instances": instances,
		"total":     len(instances),
	})
}

func (s *Server) handleGetInstance(w http.ResponseWriter, r *http.Request) {
	project := s.project(r)
	name := r.PathValue("name")
	inst, err := cache.Load(r.Context(), s.cache, []string{cache.Instances, name, project},
		func(ctx context.Context) (*lxd.Instance, error) { return s.daemon.GetInstance(ctx, project, name) })
	if err != nil {
		writeDaemonError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, inst)
}

func (s *Server) handleCreateInstance(w http.ResponseWriter, r *http.Request) {
	var req actions.CreateInstanceRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	op, err := s.actions.CreateInstance(r.Context(), s.project(r), req)
	if err != nil {
		writeDaemonError(w, err)
		return
	}
	name := op.InstanceName()
	writeOperation(w, op, name, name != "")
}

// handlePreviewInstance renders the create form as the YAML the daemon will receive.
func (s *Server) handlePreviewInstance(w http.ResponseWriter, r *http.Request) {
	var req actions.CreateInstanceRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	out, err := actions.PayloadYAML(req)
	if err != nil {
		writeDaemonError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"yaml": out})
}

func (s *Server) handleStartInstance(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	op, err := s.actions.StartInstance(r.Context(), s.project(r), name)
	if err != nil {
		writeDaemonError(w, err)
		return
	}
	writeOperation(w, op, name, true)
}

func (s *Server) handleStopInstance(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Force bool `json:"force"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	name := r.PathValue("name")
	op, err := s.actions.StopInstance(r.Context(), s.project(r), name, body.Force)
	if err != nil {
		writeDaemonError(w, err)
		return
	}
	writeOperation(w, op, name, true)
}

func (s *Server) handleMigrateInstance(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Target string `json:"target"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	name := r.PathValue("name")
	op, err := s.actions.MigrateInstance(r.Context(), s.project(r), name, body.Target)
	if err != nil {
		writeDaemonError(w, err)
		return
	}
	writeOperation(w, op, name, true)
}

func (s *Server) handleAttachISO(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Pool   string `json:"pool"`
		Volume string `json:"volume"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	name := r.PathValue("name")
	op, err := s.actions.AttachISO(r.Context(), s.project(r), name, body.Pool, body.Volume)
	if err != nil {
		writeDaemonError(w, err)
		return
	}
	writeOperation(w, op, name, true)
}

func (s *Server) handleDetachISO(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	op, err := s.actions.DetachISO(r.Context(), s.project(r), name)
	if err != nil {
		writeDaemonError(w, err)
		return
	}
	writeOperation(w, op, name, true)
}
