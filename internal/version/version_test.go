package version

import (
	"encoding/json"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// withBuild sets the ldflag variables for one test.
func withBuild(t *testing.T, version, commit, date, branch, tree string) {
	t.Helper()
	saved := []string{Version, Commit, Date, Branch, TreeState}
	t.Cleanup(func() {
		Version, Commit, Date, Branch, TreeState = saved[0], saved[1], saved[2], saved[3], saved[4]
	})
	Version, Commit, Date, Branch, TreeState = version, commit, date, branch, tree
}

func TestString(t *testing.T) {
	tests := []struct {
		name   string
		commit string
		branch string
		tree   string
		want   string
	}{
		{
			name:   "local build",
			commit: "unknown",
			branch: "unknown",
			tree:   "unknown",
			want:   "epgnow version 1.4.0 (" + runtime.Version() + ", " + runtime.GOOS + "/" + runtime.GOARCH + ")",
		},
		{
			name:   "clean tree on main",
			commit: "0123456789abcdef",
			branch: "main",
			tree:   "clean",
			want: "epgnow version 1.4.0 (commit: 01234567, built: 2024-03-10T03:00:00Z, branch: main, " +
				runtime.Version() + ", " + runtime.GOOS + "/" + runtime.GOARCH + ")",
		},
		{
			name:   "dirty tree without branch",
			commit: "0123456789abcdef",
			branch: "",
			tree:   "dirty",
			want: "epgnow version 1.4.0 (commit: 01234567*, built: 2024-03-10T03:00:00Z, " +
				runtime.Version() + ", " + runtime.GOOS + "/" + runtime.GOARCH + ")",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			withBuild(t, "1.4.0", tt.commit, "2024-03-10T03:00:00Z", tt.branch, tt.tree)
			assert.Equal(t, tt.want, String())
		})
	}
}

func TestShort(t *testing.T) {
	withBuild(t, "1.4.0", "unknown", "unknown", "unknown", "unknown")
	assert.Equal(t, "1.4.0", Short())

	Commit = "abc"
	assert.Equal(t, "1.4.0", Short(), "commits shorter than a short sha are ignored")

	Commit, TreeState = "fedcba9876543210", "dirty"
	assert.Equal(t, "1.4.0 (fedcba98*)", Short())
}

func TestJSON(t *testing.T) {
	withBuild(t, "1.4.0-SNAPSHOT.fedcba9", "fedcba9876543210", "2024-03-10T03:00:00Z", "feature/guide", "clean")

	var info map[string]string
	require.NoError(t, json.Unmarshal([]byte(JSON()), &info))
	assert.Equal(t, "1.4.0-SNAPSHOT.fedcba9", info["version"])
	assert.Equal(t, "fedcba9876543210", info["commit"])
	assert.Equal(t, "fedcba98", info["commit_sha"])
	assert.Equal(t, "feature/guide", info["branch"])
	assert.Equal(t, "clean", info["tree_state"])
	assert.Equal(t, runtime.GOOS+"/"+runtime.GOARCH, info["platform"])
}
