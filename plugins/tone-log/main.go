// Package main provides a sound-mapping plugin.
// It maps the direction and speed of an intentional movement to a note and
// appends it to a log, so a synth or sequencer can tail the file.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"
)

// Request represents the input from the plugin executor.
type Request struct {
	Landmark   string          `json:"landmark"`
	Direction  string          `json:"direction"`
	Velocity   float64         `json:"velocity"`
	Confidence float64         `json:"confidence"`
	Source     string          `json:"source"`
	Timestamp  int64           `json:"timestamp"`
	Config     json.RawMessage `json:"config"`
}

// Response represents the output to the plugin executor.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Config is the plugin's manifest configuration.
type Config struct {
	Scale   string `json:"scale"`   // "pentatonic" or "major"
	LogFile string `json:"logFile"` // empty logs to stderr
}

// Tone is the note played for one movement.
type Tone struct {
	Note     string `json:"note"`
	Octave   int    `json:"octave"`
	Velocity int    `json:"velocity"` // MIDI velocity, 1-127
}

var scales = map[string][]string{
	"pentatonic": {"C", "D", "E", "G", "A"},
	"major":      {"C", "D", "E", "F", "G", "A", "B"},
}

// degrees picks the scale degree for each movement direction.
var degrees = map[string]int{
	"up":    4,
	"right": 3,
	"none":  2,
	"left":  1,
	"down":  0,
}

func main() {
	var req Request
	if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil {
		writeErrorResponse(fmt.Sprintf("failed to decode request: %v", err))
		return
	}

	cfg := Config{Scale: "pentatonic"}
	if len(req.Config) > 0 {
		if err := json.Unmarshal(req.Config, &cfg); err != nil {
			writeErrorResponse(fmt.Sprintf("failed to parse config: %v", err))
			return
		}
	}

	tone, err := toneFor(req, cfg.Scale)
	if err != nil {
		writeErrorResponse(err.Error())
		return
	}

	if err := logTone(cfg.LogFile, req, tone); err != nil {
		writeErrorResponse(fmt.Sprintf("failed to log tone: %v", err))
		return
	}

	data, _ := json.Marshal(tone)
	json.NewEncoder(os.Stdout).Encode(Response{Success: true, Data: data})
}

// toneFor maps direction to a scale degree, speed to octave and confidence to
// loudness.
func toneFor(req Request, scale string) (Tone, error) {
	notes, ok := scales[scale]
	if !ok {
		return Tone{}, fmt.Errorf("unknown scale: %s", scale)
	}
	degree, ok := degrees[req.Direction]
	if !ok {
		return Tone{}, fmt.Errorf("unknown direction: %s", req.Direction)
	}

	octave := 3
	switch {
	case req.Velocity >= 400:
		octave = 5
	case req.Velocity >= 150:
		octave = 4
	}

	velocity := int(req.Confidence * 127)
	velocity = max(1, min(127, velocity))

	return Tone{
		Note:     fmt.Sprintf("%s%d", notes[degree%len(notes)], octave),
		Octave:   octave,
		Velocity: velocity,
	}, nil
}

func logTone(path string, req Request, tone Tone) error {
	var w io.Writer = os.Stderr
	if path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}
	_, err := fmt.Fprintf(w, "%s %s %s %s vel=%d\n",
		time.UnixMilli(req.Timestamp).UTC().Format(time.RFC3339Nano),
		req.Landmark, req.Direction, tone.Note, tone.Velocity)
	return err
}

// writeErrorResponse writes an error response to stdout.
func writeErrorResponse(errMsg string) {
	resp := Response{
		Success: false,
		Error:   errMsg,
	}
	json.NewEncoder(os.Stdout).Encode(resp)
}
