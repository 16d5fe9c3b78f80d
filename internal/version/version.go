// Package version provides build-time version information for epgnow.
//
// Version, Commit, Date, Branch and TreeState are injected at build time via ldflags:
//
//	go build -ldflags "-X github.com/jmylchreest/epgnow/internal/version.Version=x.y.z \
//	                   -X github.com/jmylchreest/epgnow/internal/version.Commit=$(git rev-parse HEAD) \
//	                   -X github.com/jmylchreest/epgnow/internal/version.Date=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
package version

import (
	"encoding/json"
	"fmt"
	"runtime"
)

// Build-time variables injected via ldflags.
var (
	// Version is the semantic version following SemVer 2.0.0.
	// Prerelease format: "1.2.3-SNAPSHOT.abc1234".
	Version = "dev"

	// Commit is the full git commit SHA.
	Commit = "unknown"

	// Date is the build timestamp in RFC3339 format.
	Date = "unknown"

	// Branch is the git branch the binary was built from.
	Branch = "unknown"

	// TreeState is "clean" or "dirty".
	TreeState = "unknown"
)

// GoVersion is the Go runtime version.
var GoVersion = runtime.Version()

// ApplicationName is the canonical name of this application.
const ApplicationName = "epgnow"

// Info contains structured version information.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	CommitSHA string `json:"commit_sha"`
	Date      string `json:"date"`
	Branch    string `json:"branch"`
	TreeState string `json:"tree_state"`
	GoVersion string `json:"go_version"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
	Platform  string `json:"platform"`
}

// GetInfo returns all version information as a structured type.
func GetInfo() Info {
	return Info{
		Version:   Version,
		Commit:    Commit,
		CommitSHA: shortCommit(),
		Date:      Date,
		Branch:    Branch,
		TreeState: TreeState,
		GoVersion: GoVersion,
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
		Platform:  fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
	}
}

func shortCommit() string {
	if Commit == "unknown" || len(Commit) < 8 {
		return ""
	}
	return Commit[:8]
}

// commitLabel is the short SHA with a trailing * for dirty trees.
func commitLabel() string {
	sha := shortCommit()
	if sha != "" && TreeState == "dirty" {
		sha += "*"
	}
	return sha
}

// String returns a human-readable version string.
func String() string {
	info := GetInfo()
	label := commitLabel()
	if label == "" {
		return fmt.Sprintf("%s version %s (%s, %s)", ApplicationName, info.Version, info.GoVersion, info.Platform)
	}
	s := fmt.Sprintf("%s version %s (commit: %s, built: %s", ApplicationName, info.Version, label, info.Date)
	if Branch != "unknown" && Branch != "" {
		s += ", branch: " + Branch
	}
	return s + fmt.Sprintf(", %s, %s)", info.GoVersion, info.Platform)
}

// Short returns a short version string for cobra's --version output.
// The application name is added by cobra.
func Short() string {
	if label := commitLabel(); label != "" {
		return fmt.Sprintf("%s (%s)", Version, label)
	}
	return Version
}

// JSON returns the version information as a JSON document.
func JSON() string {
	data, err := json.Marshal(GetInfo())
	if err != nil {
		return "{}"
	}
	return string(data)
}
