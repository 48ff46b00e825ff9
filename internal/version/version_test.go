package version

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCurrentDefaults(t *testing.T) {
	b := Current()
	require.Equal(t, "dev", b.Version)
	require.False(t, b.IsRelease())
	require.Equal(t, "storefront dev (commit unknown, built unknown)", b.String())
}

func TestCurrentReflectsLinkerValues(t *testing.T) {
	prevVersion, prevCommit, prevDate := version, commit, date
	t.Cleanup(func() { version, commit, date = prevVersion, prevCommit, prevDate })

	version, commit, date = "v1.4.0", "abc1234", "2026-05-01"
	b := Current()

	require.True(t, b.IsRelease())
	require.Equal(t, "storefront v1.4.0 (commit abc1234, built 2026-05-01)", b.String())
	require.Equal(t, "abc1234", b.Fields()["commit"])
	require.Equal(t, "2026-05-01", b.Fields()["build_date"])
}
