package main

import (
	"encoding/json"
	"encoding/base64"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/yatesdr/ablink/attrstring"
	"github.com/yatesdr/ablink/config"
	"github.com/yatesdr/ablink/tag"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type plcStatus struct {
	Gateway string `json:"gateway"`
	Dialect string `json:"dialect"`
	State   string `json:"state"`
}

func (s *server) handlePLCs(w http.ResponseWriter, r *http.Request) {
	infos := tag.Gateways()
	out := make([]plcStatus, 0, len(infos))
	for _, info := range infos {
		out = append(out, plcStatus{Gateway: info.Gateway, Dialect: info.Dialect.String(), State: info.State})
	}
	writeJSON(w, http.StatusOK, out)
}

// gatewayConfigFor looks up the named gateway entry in the pool config by
// its address, since GatewayInfo and the URL path both identify a gateway
// by address rather than its config.GatewayConfig.Name.
func (s *server) gatewayConfigFor(address string) *config.GatewayConfig {
	for i := range s.cfg.Gateways {
		if s.cfg.Gateways[i].Gateway == address {
			return &s.cfg.Gateways[i]
		}
	}
	return nil
}

func (s *server) handleTagRead(w http.ResponseWriter, r *http.Request) {
	gwAddr := chi.URLParam(r, "gateway")
	tagName := chi.URLParam(r, "name")

	gw := s.gatewayConfigFor(gwAddr)
	if gw == nil {
		http.Error(w, "unknown gateway", http.StatusNotFound)
		return
	}

	t, err := tag.CreateFromOptions(&attrstring.CreateOptions{
		Protocol:             "ab_eip",
		Gateway:              gw.Gateway,
		Path:                 gw.Path,
		CPU:                  string(gw.CPU),
		Name:                 tagName,
		ElemCount:            1,
		ReadCacheMs:          gw.ReadCacheMs,
		ShareSession:         gw.ShareSession,
		ConnectionGroupID:    gw.ConnectionGroupID,
		ForwardOpenExEnabled: gw.ForwardOpenEx,
		IdleTimeoutMs:        int(gw.EffectiveIdleTimeout().Milliseconds()),
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	defer t.Close()

	if err := t.Read(tag.DefaultRequestTimeoutMs); err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"gateway": gwAddr,
		"tag":     tagName,
		"raw":     base64.StdEncoding.EncodeToString(t.Raw()),
	})
}

func (s *server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if s.admin == nil {
		http.Error(w, "admin routes disabled", http.StatusNotFound)
		return
	}
	var creds struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		http.Error(w, "bad request body", http.StatusBadRequest)
		return
	}
	if !s.admin.check(creds.Username, creds.Password) {
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
		return
	}
	if err := s.sessions.login(w, r, creds.Username); err != nil {
		http.Error(w, "session error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "logged in"})
}

func (s *server) handleLogout(w http.ResponseWriter, r *http.Request) {
	_ = s.sessions.logout(w, r)
	writeJSON(w, http.StatusOK, map[string]string{"status": "logged out"})
}

func (s *server) handleForceReconnect(w http.ResponseWriter, r *http.Request) {
	gwAddr := chi.URLParam(r, "gateway")
	n := tag.ForceReconnect(gwAddr)
	writeJSON(w, http.StatusOK, map[string]int{"coordinators_dropped": n})
}

func (s *server) handleClearCache(w http.ResponseWriter, r *http.Request) {
	gwAddr := chi.URLParam(r, "gateway")
	tagName := chi.URLParam(r, "name")
	tag.ClearReadCache(gwAddr, tagName)
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}
