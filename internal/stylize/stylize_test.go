package stylize

import (
	"context"
	"encoding/json"
	"image"
	"image/color"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func photo(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: 180, G: 90, B: 30, A: 255})
		}
	}
	return img
}

// inferenceServer echoes every input tensor back, acting as an identity model.
func inferenceServer(t *testing.T, notReady string, readyCalls *atomic.Int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/ready"):
			if readyCalls != nil {
				readyCalls.Add(1)
			}
			if notReady != "" && strings.Contains(r.URL.Path, notReady) {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			w.WriteHeader(http.StatusOK)
		case strings.HasSuffix(r.URL.Path, "/infer"):
			var req inferRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			out := req.Inputs[0]
			out.Name = "output"
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(inferResponse{ModelName: "echo", Outputs: []inferTensor{out}})
		default:
			http.NotFound(w, r)
		}
	}))
}

func TestPreprocessCropsAndScales(t *testing.T) {
	white := image.NewNRGBA(image.Rect(0, 0, 30, 10))
	for i := range white.Pix {
		white.Pix[i] = 255
	}

	tensor := Preprocess(white, 8)
	assert.Equal(t, []int{1, 3, 8, 8}, tensor.Shape)
	require.Len(t, tensor.Data, 3*8*8)
	for _, v := range tensor.Data {
		assert.InDelta(t, 1.0, v, 1e-6)
	}
}

func TestPostprocessInvertsPreprocess(t *testing.T) {
	out, err := Postprocess(Preprocess(photo(16, 16), 16))
	require.NoError(t, err)

	got := out.NRGBAAt(5, 5)
	assert.InDelta(t, 180, got.R, 1)
	assert.InDelta(t, 90, got.G, 1)
	assert.InDelta(t, 30, got.B, 1)
	assert.Equal(t, uint8(255), got.A)
}

func TestPostprocessClipsAndValidatesShape(t *testing.T) {
	out, err := Postprocess(Tensor{Shape: []int{3, 1, 1}, Data: []float32{-3, 0, 5}})
	require.NoError(t, err)
	assert.Equal(t, color.NRGBA{R: 0, G: 127, B: 255, A: 255}, out.NRGBAAt(0, 0))

	_, err = Postprocess(Tensor{Shape: []int{1, 4, 2, 2}, Data: make([]float32, 16)})
	assert.Error(t, err)

	_, err = Postprocess(Tensor{Shape: []int{3, 2, 2}, Data: make([]float32, 5)})
	assert.Error(t, err)
}

func TestAdapterStylizesWithRemoteModel(t *testing.T) {
	srv := inferenceServer(t, "", nil)
	defer srv.Close()

	client, err := NewInferenceClient(ClientConfig{Endpoint: srv.URL})
	require.NoError(t, err)

	adapter := NewAdapter(client, quietLogger(), WithSize(8))
	require.NoError(t, adapter.Load(context.Background()))
	require.True(t, adapter.Available())

	for _, v := range Variants {
		out, err := adapter.Stylize(context.Background(), photo(20, 12), v)
		require.NoError(t, err, v)
		assert.Equal(t, image.Pt(8, 8), out.Bounds().Size())
	}

	_, err = adapter.Stylize(context.Background(), photo(4, 4), Variant("ghibli"))
	assert.ErrorIs(t, err, ErrUnknownVariant)
}

func TestAdapterDisabledAfterFailedLoad(t *testing.T) {
	var readyCalls atomic.Int32
	srv := inferenceServer(t, "paprika", &readyCalls)
	defer srv.Close()

	client, err := NewInferenceClient(ClientConfig{Endpoint: srv.URL})
	require.NoError(t, err)

	adapter := NewAdapter(client, quietLogger())
	require.Error(t, adapter.Load(context.Background()))
	assert.False(t, adapter.Available())

	calls := readyCalls.Load()
	require.Error(t, adapter.Load(context.Background()))
	assert.Equal(t, calls, readyCalls.Load(), "load must not be retried")

	_, err = adapter.Stylize(context.Background(), photo(4, 4), Celeba)
	assert.ErrorIs(t, err, ErrModelUnavailable)
}

func TestAdapterWithoutBackendIsUnavailable(t *testing.T) {
	adapter := NewAdapter(nil, quietLogger())
	assert.Error(t, adapter.Load(context.Background()))
	assert.False(t, adapter.Available())

	var disabled Stylizer = Disabled{}
	assert.False(t, disabled.Available())
}

func TestParseVariant(t *testing.T) {
	v, err := ParseVariant("FaceV2")
	require.NoError(t, err)
	assert.Equal(t, FaceV2, v)

	_, err = ParseVariant("hayao")
	assert.ErrorIs(t, err, ErrUnknownVariant)
}
