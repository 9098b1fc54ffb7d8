package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/ayusman/mudra/internal/plugin"
)

// PluginSource lists discovered output plugins.
type PluginSource interface {
	List() []*plugin.Plugin
	Get(name string) (*plugin.Plugin, error)
}

// PluginHandler handles HTTP requests for output plugin resources.
type PluginHandler struct {
	plugins PluginSource
}

// NewPluginHandler creates a new PluginHandler.
func NewPluginHandler(p PluginSource) *PluginHandler {
	return &PluginHandler{plugins: p}
}

type pluginResponse struct {
	Name          string          `json:"name"`
	Version       string          `json:"version"`
	Description   string          `json:"description"`
	Landmarks     []string        `json:"landmarks"`
	MinConfidence float64         `json:"minConfidence"`
	Config        json.RawMessage `json:"config,omitempty"`
}

type listPluginsResponse struct {
	Plugins []pluginResponse `json:"plugins"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func toResponse(p *plugin.Plugin) pluginResponse {
	landmarks := make([]string, 0, len(p.Manifest.Landmarks))
	for _, l := range p.Manifest.Landmarks {
		landmarks = append(landmarks, string(l))
	}
	return pluginResponse{
		Name:          p.Manifest.Name,
		Version:       p.Manifest.Version,
		Description:   p.Manifest.Description,
		Landmarks:     landmarks,
		MinConfidence: p.Manifest.MinConfidence,
		Config:        p.Manifest.Config,
	}
}

// ServeHTTP implements the http.Handler interface.
// Expected paths: /api/plugins or /api/plugins/{name}
func (h *PluginHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	name := strings.TrimPrefix(r.URL.Path, "/api/plugins")
	name = strings.Trim(name, "/")

	if name == "" {
		plugins := h.plugins.List()
		response := listPluginsResponse{Plugins: make([]pluginResponse, 0, len(plugins))}
		for _, p := range plugins {
			response.Plugins = append(response.Plugins, toResponse(p))
		}
		writeJSON(w, http.StatusOK, response)
		return
	}

	p, err := h.plugins.Get(name)
	if err != nil {
		writeError(w, http.StatusNotFound, "Plugin not found")
		return
	}
	writeJSON(w, http.StatusOK, toResponse(p))
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}
