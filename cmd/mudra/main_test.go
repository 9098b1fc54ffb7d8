package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayusman/mudra/internal/calibration"
	"github.com/ayusman/mudra/internal/detection"
	"github.com/ayusman/mudra/internal/pose"
)

func TestTrainError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"too few", &calibration.DataError{Deficiency: calibration.TooFewSamples, Intentional: 3, Unintentional: 2}, "not enough calibration samples (3 intentional, 2 unintentional)"},
		{"missing class", &calibration.DataError{Deficiency: calibration.MissingClass, Intentional: 30}, "both intentional and unintentional"},
		{"imbalance", &calibration.DataError{Deficiency: calibration.ExtremeImbalance, Intentional: 40, Unintentional: 4}, "too imbalanced (40/4)"},
		{"other", errors.New("diverged"), "training failed: diverged"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Contains(t, trainError(tt.err).Error(), tt.want)
		})
	}
}

func TestPoseSource(t *testing.T) {
	t.Run("file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "frames.ndjson")
		require.NoError(t, os.WriteFile(path, []byte(`{"timestamp":0,"landmarks":[]}`+"\n"), 0o644))

		src, closeSrc, err := poseSource("", path)
		require.NoError(t, err)
		defer closeSrc()
		assert.IsType(t, &pose.StreamSource{}, src)
	})

	t.Run("missing file", func(t *testing.T) {
		_, _, err := poseSource("", filepath.Join(t.TempDir(), "nope.ndjson"))
		assert.Error(t, err)
	})

	t.Run("blank command", func(t *testing.T) {
		_, _, err := poseSource("   ", "")
		assert.Error(t, err)
	})

	t.Run("command", func(t *testing.T) {
		src, closeSrc, err := poseSource("python3 pose.py --fps 30", "")
		require.NoError(t, err)
		defer closeSrc()
		assert.IsType(t, &pose.ProcessSource{}, src)
	})
}

func TestCapabilities(t *testing.T) {
	assert.Equal(t, "heuristic", capabilities(detection.Capabilities{}))
	assert.Equal(t, "heuristic,trainable,remote", capabilities(detection.Capabilities{Trainable: true, Remote: true}))
}

func TestPrintQuality(t *testing.T) {
	var buf bytes.Buffer
	printQuality(&buf, "alice", calibration.Breakdown{Count: 25, Balance: 20, Diversity: 10, Separability: 20, Total: 75}, 30, 20)

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "Calibration for alice: 50 samples (30 intentional, 20 unintentional)"))
	assert.Contains(t, out, "total:         75.0 / 100 (ready)")
}

func TestVersionCmd(t *testing.T) {
	var buf bytes.Buffer
	cmd := versionCmd()
	cmd.SetOut(&buf)
	cmd.Run(cmd, nil)
	assert.Equal(t, "mudra dev\n", buf.String())
}
