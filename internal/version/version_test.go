package version

import (
	"strings"
	"testing"
)

func TestString(t *testing.T) {
	origVersion, origCommit := Version, Commit
	t.Cleanup(func() { Version, Commit = origVersion, origCommit })

	Version, Commit = "v1.2.3", "abc1234"
	if got := String(); got != "v1.2.3 (abc1234)" {
		t.Errorf("String() = %q", got)
	}
}

func TestStringUnstamped(t *testing.T) {
	got := String()
	if !strings.HasSuffix(got, ")") || !strings.Contains(got, " (") {
		t.Errorf("String() = %q, want \"version (commit)\"", got)
	}
}
