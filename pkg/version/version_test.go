package version_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rshade/fetchcache/pkg/version"
)

func TestDefaults(t *testing.T) {
	assert.NotEmpty(t, version.GetVersion())
	assert.NotEmpty(t, version.GetGitCommit())
	assert.NotEmpty(t, version.GetBuildDate())
}

func TestDisplay(t *testing.T) {
	assert.Equal(t, "v1.2.3", version.Display("1.2.3"))
	assert.Equal(t, "v1.2.3", version.Display("v1.2.3"))
	assert.Equal(t, "v0.4.0-rc.1", version.Display("0.4.0-rc.1"))
	assert.Equal(t, "dev (development build)", version.Display("dev"))
}
