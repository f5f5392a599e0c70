package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/naka-gawa/velocity-dashboard/internal/dashboard"
)

func TestWriteDashboard(t *testing.T) {
	data := dashboard.Data{Title: "AI Velocity Dashboard", Days: 7}
	dir := t.TempDir()

	testCases := []struct {
		name        string
		path        string
		toStdout    bool
		expectError bool
	}{
		{name: "stdout with dash", path: "-", toStdout: true},
		{name: "stdout when empty", path: "", toStdout: true},
		{name: "file", path: filepath.Join(dir, "dashboard.html")},
		{name: "missing directory", path: filepath.Join(dir, "missing", "dashboard.html"), expectError: true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var stdout bytes.Buffer
			err := writeDashboard(&stdout, tc.path, data)
			if tc.expectError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)

			if tc.toStdout {
				assert.Contains(t, stdout.String(), "AI Velocity Dashboard")
				return
			}
			assert.Empty(t, stdout.String())
			written, err := os.ReadFile(tc.path)
			require.NoError(t, err)
			assert.Contains(t, string(written), "Activity over time (last 7 days)")
		})
	}
}
