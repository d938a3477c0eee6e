package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rshade/fetchcache/internal/cli"
	"github.com/rshade/fetchcache/pkg/version"
)

func TestRun(t *testing.T) {
	t.Setenv("FETCHCACHE_BACKING", "memory")
	t.Setenv("FETCHCACHE_CONFIG", "")

	assert.Equal(t, 0, run([]string{"--version"}))
	assert.Equal(t, 0, run([]string{"config", "show"}))
	assert.Equal(t, 1, run([]string{"show"}))
	assert.Equal(t, 1, run([]string{"get", "not-a-url"}))
}

func TestRootCommand(t *testing.T) {
	root := cli.NewRootCmd(version.GetVersion())
	assert.Equal(t, "fetchcache", root.Use)
	assert.Equal(t, version.Display(version.GetVersion()), root.Version)
}
