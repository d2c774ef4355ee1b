package cli

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCmd_ClosesLogFile(t *testing.T) {
	t.Parallel()

	data := filepath.Join(t.TempDir(), "data.csv")
	require.NoError(t, os.WriteFile(data, []byte("id\n1\n2\n3\n"), 0o600))

	tests := []struct {
		name    string
		args    []string
		wantErr bool
	}{
		{name: "success", args: []string{"size", "--file", data}},
		{name: "failing command", args: []string{"read", "--file", data, "--bundle-size", "1", "--scan-from-zero"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			home := t.TempDir()
			logPath := filepath.Join(home, "framesource.log")
			cfg := "logging:\n  level: info\n  format: json\n  file: " + logPath + "\n"
			require.NoError(t, os.WriteFile(filepath.Join(home, "config.yaml"), []byte(cfg), 0o600))

			env := map[string]string{"FRAMESOURCE_HOME": home}
			lookup := func(k string) (string, bool) {
				v, ok := env[k]
				return v, ok
			}

			a := newApp()
			cmd := newRootCmd("test", lookup, a)
			cmd.SetOut(io.Discard)
			cmd.SetErr(io.Discard)
			cmd.SetArgs(tt.args)

			err := cmd.Execute()
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}

			// A second close fails only if the command already closed the file.
			assert.ErrorIs(t, a.closeLog(), os.ErrClosed)
			assert.FileExists(t, logPath)
		})
	}
}
