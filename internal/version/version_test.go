package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsVersionGreaterOrEqualThan(t *testing.T) {
	tests := []struct {
		version string
		target  string
		want    bool
	}{
		{"0.1.0", "0.1.0", true},
		{"0.2.0", "0.1.9", true},
		{"0.1.0", "0.2.0", false},
		{"v1.0.0", "0.9.0", true},
		{"1.0.0-dev", "1.0.0", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsVersionGreaterOrEqualThan(tt.version, tt.target), "%s >= %s", tt.version, tt.target)
	}
}

func TestIsValid(t *testing.T) {
	assert.True(t, IsValid("0.1.0"))
	assert.True(t, IsValid("v2.3.4-rc.1"))
	assert.False(t, IsValid("latest"))
}

func TestGetCurrentVersion(t *testing.T) {
	assert.Equal(t, Version, GetCurrentVersion("prod"))
	assert.Equal(t, DevVersion, GetCurrentVersion("dev"))
}

func TestString(t *testing.T) {
	saved := GitCommit
	defer func() { GitCommit = saved }()

	GitCommit = "unknown"
	assert.Equal(t, Version, String())

	GitCommit = "0123456789abcdef"
	assert.Equal(t, Version+"-01234567", String())
}
