//go:build !govips || !cgo

package codec

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWebPExportNeedsGovips(t *testing.T) {
	c, err := New()
	require.NoError(t, err)

	assert.False(t, c.CanEncode(FormatWEBP))
	_, err = c.Encode(image.NewNRGBA(image.Rect(0, 0, 1, 1)), FormatWEBP, 80)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}
