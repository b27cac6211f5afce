package cli

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Conceptual-Machines/nearfield-gen/internal/config"
	"github.com/Conceptual-Machines/nearfield-gen/internal/runner"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cmd := NewRootCommand("test")
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestSample_CSV(t *testing.T) {
	out, _, err := execute(t, "sample", "--num-images", "4", "--seed", "9")
	require.NoError(t, err)

	records, err := csv.NewReader(strings.NewReader(out)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 5)
	assert.Equal(t, "major_axis", records[0][0])
	assert.Len(t, records[0], 12)

	again, _, err := execute(t, "sample", "--num-images", "4", "--seed", "9")
	require.NoError(t, err)
	assert.Equal(t, out, again)
}

func TestSample_JSON(t *testing.T) {
	out, _, err := execute(t, "sample", "--num-images", "3", "--format", "json", "--sampling-method", "random")
	require.NoError(t, err)

	var sets []map[string]float64
	require.NoError(t, json.Unmarshal([]byte(out), &sets))
	require.Len(t, sets, 3)
	for _, s := range sets {
		assert.Len(t, s, 12)
	}
}

func TestSample_RangesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ranges.yaml")
	require.NoError(t, os.WriteFile(path, []byte("a: [0, 1]\nb:\n  c: [5, 6]\n"), 0o644))

	out, _, err := execute(t, "sample", "--num-images", "2", "--ranges", path, "--integer-params", "")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "a,b_c\n"), out)
}

func TestSample_Errors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"unknown method", []string{"sample", "--sampling-method", "sobol"}},
		{"bad format", []string{"sample", "--format", "xml"}},
		{"zero images", []string{"sample", "--num-images", "0"}},
		{"missing config file", []string{"sample", "--config", "/nonexistent/nearfield.yaml"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := execute(t, tt.args...)
			assert.ErrorIs(t, err, config.ErrInvalidConfig)
		})
	}
}

func TestGenerate(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "images")

	out, progress, err := execute(t, "generate",
		"--num-images", "3",
		"--canvas-width", "20",
		"--canvas-height", "12",
		"--workers", "2",
		"--seed", "11",
		"--output-dir", base,
	)
	require.NoError(t, err)
	assert.Contains(t, out, "3/3 images saved")
	assert.Contains(t, progress, "Generating images: 3/3")
	assert.Contains(t, progress, "Last saved: nearfield_image_")

	folders, err := filepath.Glob(base + "_*")
	require.NoError(t, err)
	require.Len(t, folders, 1)
	for _, name := range []string{"nearfield_image_001.tiff", "nearfield_image_002.tiff", "nearfield_image_003.tiff", runner.ParamsLogFile} {
		assert.FileExists(t, filepath.Join(folders[0], name))
	}
}

func TestGenerate_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "nearfield.yaml")
	cfgYAML := "canvas:\n  width: 8\n  height: 8\nnum:\n  images: 2\noutput:\n  dir: " + filepath.Join(dir, "out") + "\n"
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfgYAML), 0o644))

	out, _, err := execute(t, "generate", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "2/2 images saved")
}

func TestProgressLine(t *testing.T) {
	var buf bytes.Buffer
	p := &progressLine{w: &buf}
	p.Update(runner.Progress{Done: 1, Total: 2, LastFile: "nearfield_image_001.tiff"})
	p.Update(runner.Progress{Done: 2, Total: 2, Failed: 1})
	p.End()

	assert.Equal(t,
		"\rGenerating images: 1/2 [ 50%] failed: 0 Last saved: nearfield_image_001.tiff"+
			"\rGenerating images: 2/2 [100%] failed: 1\n",
		buf.String())
}

func TestProgressLine_CancelledRunSummaryStartsOnNewLine(t *testing.T) {
	// Progress and summary share one terminal.
	var term bytes.Buffer
	p := &progressLine{w: &term}
	p.Update(runner.Progress{Done: 1, Total: 3, LastFile: "nearfield_image_001.tiff"})
	p.End()
	printSummary(&term, &runner.Summary{
		RunID:     "r1",
		OutputDir: "out",
		Requested: 3,
		Succeeded: 1,
		Skipped:   2,
		Duration:  1500 * time.Millisecond,
	})

	lines := strings.Split(term.String(), "\n")
	require.GreaterOrEqual(t, len(lines), 3)
	assert.Equal(t, "\rGenerating images: 1/3 [ 33%] failed: 0 Last saved: nearfield_image_001.tiff", lines[0])
	assert.Equal(t, "Run r1: 1/3 images saved to out in 1.5s", lines[1])
	assert.Equal(t, "2 images skipped after cancellation", lines[2])

	// Nothing was drawn, so nothing to terminate.
	var empty bytes.Buffer
	(&progressLine{w: &empty}).End()
	assert.Empty(t, empty.String())
}

func TestFilterSensitiveHeaders(t *testing.T) {
	got := filterSensitiveHeaders(map[string]string{"authorization": "Bearer x", "accept": "image/png"})
	assert.Equal(t, "[REDACTED]", got["authorization"])
	assert.Equal(t, "image/png", got["accept"])
}
