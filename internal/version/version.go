// Package version carries build metadata stamped in by the linker:
//
//	go build -ldflags "-X github.com/rickgao/polymarket-data/internal/version.Version=v0.3.0 \
//	                   -X github.com/rickgao/polymarket-data/internal/version.Commit=$(git rev-parse --short HEAD)" \
//	                   ./cmd/syncer
package version

import "runtime/debug"

var (
	Version = "dev"
	Commit  = "unknown"
)

// String returns "version (commit)". Unstamped builds fall back to the
// module version and VCS revision recorded by the Go toolchain.
func String() string {
	v, c := Version, Commit
	if info, ok := debug.ReadBuildInfo(); ok {
		if v == "dev" && info.Main.Version != "" && info.Main.Version != "(devel)" {
			v = info.Main.Version
		}
		if c == "unknown" {
			for _, s := range info.Settings {
				if s.Key == "vcs.revision" && len(s.Value) >= 7 {
					c = s.Value[:7]
				}
			}
		}
	}
	return v + " (" + c + ")"
}
