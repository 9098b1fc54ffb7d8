// Package testdata embeds recorded pose sequences for end-to-end tests.
package testdata

import (
	"bytes"
	"context"
	"embed"
	"fmt"

	"github.com/ayusman/mudra/internal/pose"
)

//go:embed frames/*
var framesFS embed.FS

// Sequences recorded at 30fps.
const (
	Reach  = "reach"  // right wrist sweeps 230px to the right, others still
	Tremor = "tremor" // left wrist oscillates in place with slight drift
	Rest   = "rest"   // nobody moves
)

// Open returns a Source replaying the named sequence.
func Open(name string) (pose.Source, error) {
	data, err := framesFS.ReadFile("frames/" + name + ".ndjson")
	if err != nil {
		return nil, fmt.Errorf("load sequence %s: %w", name, err)
	}
	return pose.NewStreamSource(bytes.NewReader(data)), nil
}

// LoadSequence decodes every frame of the named sequence.
func LoadSequence(name string) ([]pose.Frame, error) {
	src, err := Open(name)
	if err != nil {
		return nil, err
	}

	frames, errs := src.Frames(context.Background())
	var out []pose.Frame
	for f := range frames {
		out = append(out, f)
	}
	if err := <-errs; err != nil {
		return nil, fmt.Errorf("decode sequence %s: %w", name, err)
	}
	return out, nil
}
