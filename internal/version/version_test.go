package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestString(t *testing.T) {
	orig := [3]string{Version, GitCommit, BuildDate}
	t.Cleanup(func() { Version, GitCommit, BuildDate = orig[0], orig[1], orig[2] })

	Version, GitCommit, BuildDate = "1.2.3", "abc1234", "2026-10-01"

	assert.Equal(t, "healthboard 1.2.3\ncommit: abc1234\nbuilt:  2026-10-01", String())
}
