package cli

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/stateviz/internal/config"
)

func TestNewCommandLoadsConfigAndRuns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stateviz_config.txt")
	require.NoError(t, os.WriteFile(path, []byte("NODE_NAME=cli_test\n"), 0o644))

	var ran bool
	cmd := NewCommand("stateviz", "test", func() error {
		ran = true
		return nil
	})
	cmd.SetArgs([]string{"--config", path})
	require.NoError(t, cmd.Execute())

	assert.True(t, ran)
	require.NotNil(t, config.Get())
	assert.Equal(t, "cli_test", config.Get().NodeName)
}

func TestNewCommandPropagatesRunError(t *testing.T) {
	boom := errors.New("boom")
	cmd := NewCommand("stateviz", "test", func() error { return boom })
	cmd.SetArgs([]string{"-c", filepath.Join(t.TempDir(), "missing.txt")})
	assert.ErrorIs(t, cmd.Execute(), boom)
}

func TestNewCommandRejectsArgs(t *testing.T) {
	cmd := NewCommand("stateviz", "test", func() error { return nil })
	cmd.SetArgs([]string{"extra"})
	assert.Error(t, cmd.Execute())
}

func TestDefaultConfigFlag(t *testing.T) {
	cmd := NewCommand("viewer", "test", func() error { return nil })
	f := cmd.PersistentFlags().Lookup("config")
	require.NotNil(t, f)
	assert.Equal(t, config.DefaultPath, f.DefValue)
	assert.Equal(t, "c", f.Shorthand)
}
