package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMinorVersion(t *testing.T) {
	assert.Equal(t, "v0.25", MinorVersion("0.25.1"))
	assert.Equal(t, "", MinorVersion("not-a-version"))
	assert.True(t, IsValid("1.2.3"))
	assert.False(t, IsValid("x"))
}

func TestString(t *testing.T) {
	oldVersion, oldCommit := Version, GitCommit
	t.Cleanup(func() { Version, GitCommit = oldVersion, oldCommit })

	Version, GitCommit = "1.2.3", "unknown"
	assert.Equal(t, "v1.2.3", String())

	GitCommit = "0123456789abcdef"
	assert.Equal(t, "v1.2.3-01234567", String())
	assert.Equal(t, "01234567", Get().Commit)
	assert.Equal(t, "v1.2", Get().Minor)

	Version = "dev-build"
	assert.Empty(t, Get().Minor)
}
