package label

import (
	"bytes"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boyski/audited-objects/cmd/ao/command"
	"github.com/boyski/audited-objects/pkg/config"
)

func TestLabelRoundTripsValue(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)
	params := &command.GlobalParams{Config: cfg}

	root := &cobra.Command{Use: "ao"}
	for _, c := range Commands(params) {
		root.AddCommand(c)
	}
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"label", "release-42"})
	require.NoError(t, root.Execute())
	assert.Equal(t, "release-42\n", out.String())

	out.Reset()
	root.SetArgs([]string{"label"})
	require.NoError(t, root.Execute())
	assert.Equal(t, "release-42\n", out.String())
}
