package version

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetInfo(t *testing.T) {
	info := GetInfo()

	assert.Equal(t, Version, info.Version)
	assert.Equal(t, runtime.GOOS, info.OS)
	assert.Equal(t, runtime.GOARCH, info.Arch)
	assert.NotEmpty(t, info.GoVersion)
}

func TestString_ContainsAllFields(t *testing.T) {
	s := GetInfo().String()

	assert.Contains(t, s, "soudok version")
	assert.Contains(t, s, Commit)
	assert.Contains(t, s, runtime.GOOS)
}
