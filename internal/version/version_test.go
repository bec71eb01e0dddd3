package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestString(t *testing.T) {
	origVersion, origCommit := Version, GitCommit
	t.Cleanup(func() { Version, GitCommit = origVersion, origCommit })

	Version, GitCommit = "0.2.0", "unknown"
	assert.Equal(t, "0.2.0", String())

	GitCommit = "0123456789abcdef"
	assert.Equal(t, "0.2.0-01234567", String())
}

func TestCanonicalAndCompare(t *testing.T) {
	orig := Version
	t.Cleanup(func() { Version = orig })

	Version = "0.2.1"
	assert.Equal(t, "v0.2.1", Canonical())
	assert.True(t, IsAtLeast("0.2.0"))
	assert.True(t, IsAtLeast("v0.2.1"))
	assert.False(t, IsAtLeast("0.3.0"))

	Version = "not-a-version"
	assert.Equal(t, "", Canonical())
}
