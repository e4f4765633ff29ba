package id

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewIsHex(t *testing.T) {
	hexPattern := regexp.MustCompile(`^[0-9a-f]{32}$`)
	a, b := New(), New()

	assert.Regexp(t, hexPattern, a)
	assert.Regexp(t, hexPattern, b)
	assert.NotEqual(t, a, b)
}

func TestArtifactName(t *testing.T) {
	assert.Equal(t, "sepia_abc.png", ArtifactName("sepia", "abc", "png"))
	assert.Equal(t, "abc.jpg", ArtifactName("", "abc", ".JPG"))
	assert.Equal(t, "converted_abc", ArtifactName("converted", "abc", ""))
}
