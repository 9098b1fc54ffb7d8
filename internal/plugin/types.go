// Package plugin discovers and runs output plugins that react to intentional
// movements.
package plugin

import (
	"encoding/json"
	"slices"

	"github.com/ayusman/mudra/internal/detection"
	"github.com/ayusman/mudra/internal/features"
	"github.com/ayusman/mudra/internal/pose"
)

// Manifest describes a plugin's metadata and the movements it reacts to.
type Manifest struct {
	Name        string `json:"name"`
	Version     string `json:"version"`
	Description string `json:"description"`
	Executable  string `json:"executable"`

	// Landmarks restricts the plugin to movements of these landmarks. Empty
	// means every landmark.
	Landmarks []pose.LandmarkName `json:"landmarks,omitempty"`

	// MinConfidence drops movements classified with lower confidence.
	MinConfidence float64 `json:"minConfidence,omitempty"`

	Config json.RawMessage `json:"config,omitempty"`
}

// Request is the JSON document a plugin receives on stdin.
type Request struct {
	Landmark   pose.LandmarkName  `json:"landmark"`
	Direction  features.Direction `json:"direction"`
	Velocity   float64            `json:"velocity"`
	Confidence float64            `json:"confidence"`
	Source     string             `json:"source"`
	Timestamp  int64              `json:"timestamp"`
	Config     json.RawMessage    `json:"config,omitempty"`
}

// NewRequest builds the request for result, carrying the plugin's config.
func NewRequest(p *Plugin, r detection.MovementResult) *Request {
	return &Request{
		Landmark:   r.Landmark,
		Direction:  r.Direction,
		Velocity:   r.Velocity,
		Confidence: r.Confidence,
		Source:     r.Source,
		Timestamp:  r.Timestamp,
		Config:     p.Manifest.Config,
	}
}

// Response is the JSON document a plugin writes to stdout.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Plugin represents a discovered plugin with its manifest and location.
type Plugin struct {
	Manifest   Manifest
	Path       string
	Executable string
}

// Accepts reports whether the plugin wants result.
func (p *Plugin) Accepts(r detection.MovementResult) bool {
	if !r.IsIntentional || r.Confidence < p.Manifest.MinConfidence {
		return false
	}
	return len(p.Manifest.Landmarks) == 0 || slices.Contains(p.Manifest.Landmarks, r.Landmark)
}
