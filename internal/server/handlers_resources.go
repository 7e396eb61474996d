package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/battlewithbytes/lxd-console/internal/cache"
	"github.com/battlewithbytes/lxd-console/internal/lxd"
)

// --- Images and ISOs ---

func (s *Server) handleListImages(w http.ResponseWriter, r *http.Request) {
	project := s.project(r)
	images, err := s.daemon.ListImages(r.Context(), project)
	if err != nil {
		writeDaemonError(w, err)
		return
	}
	if images == nil {
		images = []lxd.Image{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"images": images, "total": len(images)})
}

func (s *Server) handleListISOs(w http.ResponseWriter, r *http.Request) {
	project := s.project(r)
	list, err := cache.Load(r.Context(), s.cache, []string{cache.ISOs, project},
		func(ctx context.Context) ([]lxd.StorageVolume, error) { return s.daemon.ListISOVolumes(ctx, project) })
	if err != nil {
		writeDaemonError(w, err)
		return
	}

	query := strings.ToLower(r.URL.Query().Get("q"))
	isos := make([]lxd.StorageVolume, 0, len(list))
	for _, v := range list {
		if query != "" && !strings.Contains(strings.ToLower(v.Name), query) {
			continue
		}
		isos = append(isos, v)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"isos": isos, "total": len(isos)})
}

func (s *Server) handleDeleteISO(w http.ResponseWriter, r *http.Request) {
	pool, volume := r.PathValue("pool"), r.PathValue("volume")
	if err := s.daemon.DeleteStorageVolume(r.Context(), s.project(r), pool, volume); err != nil {
		writeDaemonError(w, err)
		return
	}
	s.cache.Invalidate(cache.ISOs)
	s.cache.Invalidate(cache.Storage)
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// --- Networks ---

func (s *Server) handleListNetworks(w http.ResponseWriter, r *http.Request) {
	project := s.project(r)
	networks, err := cache.Load(r.Context(), s.cache, []string{cache.Networks, listSegment, project},
		func(ctx context.Context) ([]lxd.Network, error) { return s.daemon.ListNetworks(ctx, project) })
	if err != nil {
		writeDaemonError(w, err)
		return
	}
	if networks == nil {
		networks = []lxd.Network{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"networks": networks, "total": len(networks)})
}

func (s *Server) handleGetNetwork(w http.ResponseWriter, r *http.Request) {
	project := s.project(r)
	name := r.PathValue("name")
	n, err := cache.Load(r.Context(), s.cache, []string{cache.Networks, name, project},
		func(ctx context.Context) (*lxd.Network, error) { return s.daemon.GetNetwork(ctx, project, name) })
	if err != nil {
		writeDaemonError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"network": n,
		"form":    lxd.NetworkEditValues(n),
	})
}

func (s *Server) handleCreateNetwork(w http.ResponseWriter, r *http.Request) {
	var body struct {
		lxd.NetworkFormValues
		Target string `json:"target,omitempty"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if body.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	req := lxd.NetworksPost{
		NetworkPut: lxd.NetworkPayload(body.NetworkFormValues, nil),
		Name:       body.Name,
		Type:       body.Type,
	}
	if err := s.daemon.CreateNetwork(r.Context(), s.project(r), body.Target, req); err != nil {
		writeDaemonError(w, err)
		return
	}
	s.cache.Invalidate(cache.Networks)
	writeJSON(w, http.StatusCreated, map[string]string{"status": "created", "name": body.Name})
}

func (s *Server) handleUpdateNetwork(w http.ResponseWriter, r *http.Request) {
	var values lxd.NetworkFormValues
	if err := decodeBody(r, &values); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	project := s.project(r)
	name := r.PathValue("name")
	existing, err := s.daemon.GetNetwork(r.Context(), project, name)
	if err != nil {
		writeDaemonError(w, err)
		return
	}

	put := lxd.NetworkPayload(values, existing.Config)
	if err := s.daemon.UpdateNetwork(r.Context(), project, name, put); err != nil {
		writeDaemonError(w, err)
		return
	}
	s.cache.Invalidate(cache.Networks)
	writeJSON(w, http.StatusOK, map[string]string{"status": "updated", "name": name})
}

func (s *Server) handleDeleteNetwork(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if err := s.daemon.DeleteNetwork(r.Context(), s.project(r), name); err != nil {
		writeDaemonError(w, err)
		return
	}
	s.cache.Invalidate(cache.Networks)
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted", "name": name})
}

// --- Profiles ---

func (s *Server) handleListProfiles(w http.ResponseWriter, r *http.Request) {
	project := s.project(r)
	profiles, err := cache.Load(r.Context(), s.cache, []string{cache.Profiles, listSegment, project},
		func(ctx context.Context) ([]lxd.Profile, error) { return s.daemon.ListProfiles(ctx, project) })
	if err != nil {
		writeDaemonError(w, err)
		return
	}
	if profiles == nil {
		profiles = []lxd.Profile{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"profiles": profiles, "total": len(profiles)})
}

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	project := s.project(r)
	name := r.PathValue("name")
	p, err := cache.Load(r.Context(), s.cache, []string{cache.Profiles, name, project},
		func(ctx context.Context) (*lxd.Profile, error) { return s.daemon.GetProfile(ctx, project, name) })
	if err != nil {
		writeDaemonError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleCreateProfile(w http.ResponseWriter, r *http.Request) {
	var req lxd.ProfilesPost
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	if err := s.daemon.CreateProfile(r.Context(), s.project(r), req); err != nil {
		writeDaemonError(w, err)
		return
	}
	s.cache.Invalidate(cache.Profiles)
	writeJSON(w, http.StatusCreated, map[string]string{"status": "created", "name": req.Name})
}

func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var put lxd.ProfilePut
	if err := decodeBody(r, &put); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	name := r.PathValue("name")
	if err := s.daemon.UpdateProfile(r.Context(), s.project(r), name, put); err != nil {
		writeDaemonError(w, err)
		return
	}
	s.cache.Invalidate(cache.Profiles)
	writeJSON(w, http.StatusOK, map[string]string{"status": "updated", "name": name})
}

func (s *Server) handleDeleteProfile(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if name == "default" {
		writeError(w, http.StatusBadRequest, "the default profile cannot be deleted")
		return
	}
	if err := s.daemon.DeleteProfile(r.Context(), s.project(r), name); err != nil {
		writeDaemonError(w, err)
		return
	}
	s.cache.Invalidate(cache.Profiles)
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted", "name": name})
}

// --- Storage and cluster ---

func (s *Server) handleListStoragePools(w http.ResponseWriter, r *http.Request) {
	project := s.project(r)
	pools, err := cache.Load(r.Context(), s.cache, []string{cache.Storage, "pools", project},
		func(ctx context.Context) ([]lxd.StoragePool, error) { return s.daemon.ListStoragePools(ctx, project) })
	if err != nil {
		writeDaemonError(w, err)
		return
	}
	if pools == nil {
		pools = []lxd.StoragePool{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"pools": pools, "total": len(pools)})
}

func (s *Server) handleListStorageVolumes(w http.ResponseWriter, r *http.Request) {
	project := s.project(r)
	pool := r.PathValue("pool")
	volumes, err := cache.Load(r.Context(), s.cache, []string{cache.Storage, "volumes", pool, project},
		func(ctx context.Context) ([]lxd.StorageVolume, error) {
			return s.daemon.ListStorageVolumes(ctx, project, pool)
		})
	if err != nil {
		writeDaemonError(w, err)
		return
	}
	if volumes == nil {
		volumes = []lxd.StorageVolume{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"volumes": volumes, "total": len(volumes)})
}

func (s *Server) handleListClusterMembers(w http.ResponseWriter, r *http.Request) {
	members, err := cache.Load(r.Context(), s.cache, []string{cache.Members}, s.daemon.ListClusterMembers)
	if err != nil {
		writeDaemonError(w, err)
		return
	}
	if members == nil {
		members = []lxd.ClusterMember{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"members": members, "total": len(members)})
}
