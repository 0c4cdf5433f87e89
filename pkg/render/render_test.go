package render

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleImage(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, w, h))
	for x := range w {
		img.SetGray(x, h/2, color.Gray{})
	}
	buf := new(bytes.Buffer)
	require.NoError(t, png.Encode(buf, img))
	return buf.Bytes()
}

func smallLayout() Layout {
	l := DefaultLayout()
	l.Width, l.Height, l.DPI, l.Margin = 248, 351, 30, 12
	return l
}

func TestComposeProducesPageOfLayoutSize(t *testing.T) {
	r, err := NewRenderer(smallLayout())
	require.NoError(t, err)

	page, err := r.Compose(sampleImage(t, 64, 96), "The Unlucky Morning",
		"Sparkle woke up and found that everything was going wrong today.", Layout{})
	require.NoError(t, err)

	cfg, format, err := image.DecodeConfig(bytes.NewReader(page))
	require.NoError(t, err)
	assert.Equal(t, "png", format)
	assert.Equal(t, 248, cfg.Width)
	assert.Equal(t, 351, cfg.Height)
}

func TestComposeRejectsGarbage(t *testing.T) {
	r, err := NewRenderer(smallLayout())
	require.NoError(t, err)
	_, err = r.Compose([]byte("not an image"), "t", "s", Layout{})
	assert.Error(t, err)
}

func TestDefaultLayoutIsA4(t *testing.T) {
	l := Layout{}.withDefaults()
	assert.Equal(t, 2480, l.Width)
	assert.Equal(t, 3508, l.Height)
	assert.InDelta(t, 0.82, l.ImageRatio, 1e-9)
}

func TestFitKeepsAspectRatio(t *testing.T) {
	got := fit(image.Rect(0, 0, 100, 150), image.Rect(0, 0, 400, 300))
	assert.Equal(t, 200, got.Dx())
	assert.Equal(t, 300, got.Dy())
	assert.Equal(t, 100, got.Min.X)
}

func TestBookWritesPDF(t *testing.T) {
	pages := [][]byte{sampleImage(t, 40, 60), sampleImage(t, 40, 60)}
	pdf, err := Book(t.Context(), "Sparkle and the Lucky Clover", pages)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(pdf, []byte("%PDF-")))
}

func TestBookRejectsEmpty(t *testing.T) {
	_, err := Book(t.Context(), "empty", nil)
	assert.Error(t, err)
}

func TestImageRegionTakesImageRatioOfPage(t *testing.T) {
	l := DefaultLayout()
	title, img, text := l.regions()

	assert.Equal(t, 210, title.Dy())
	assert.Equal(t, title.Max.Y, img.Min.Y)
	assert.Equal(t, 2876, img.Dy())
	assert.Greater(t, text.Dy(), 0)
	assert.Greater(t, text.Min.Y, img.Max.Y)
}

func TestWithDefaultsResetsOverfullBands(t *testing.T) {
	l := Layout{Width: 100, Height: 200, ImageRatio: 0.9, TitleRatio: 0.1}.withDefaults()
	assert.InDelta(t, 0.82, l.ImageRatio, 1e-9)
	assert.InDelta(t, 0.06, l.TitleRatio, 1e-9)
}
