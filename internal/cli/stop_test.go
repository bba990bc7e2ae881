package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStopCommand(t *testing.T) {
	t.Run("help text", func(t *testing.T) {
		output, err := execute(t, "stop", "--help")
		require.NoError(t, err)

		assert.Contains(t, output, "Stop the scheduler service")
		assert.Contains(t, output, "timeout")
	})

	t.Run("not running", func(t *testing.T) {
		cfgPath := writeWorkspace(t, `{"tools": {}}`)

		_, err := execute(t, "--config", cfgPath, "stop")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not running")
	})
}

func TestServeCommand(t *testing.T) {
	t.Run("nothing to schedule", func(t *testing.T) {
		cfgPath := writeWorkspace(t, `{"tools": {}}`)

		_, err := execute(t, "--config", cfgPath, "serve", "--presenter", "auto-reject")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "nothing to schedule")
	})

	t.Run("invalid schedule", func(t *testing.T) {
		cfgPath := writeWorkspace(t, `{"tools": {}}`)

		_, err := execute(t, "--config", cfgPath, "serve", "--presenter", "auto-reject", "--schedule", "sometimes", "--batch", "batch.json")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid cron expression")
	})
}
