package render

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"strings"

	"github.com/gen2brain/webp"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"

	"storybook/pkg/utils"
)

// PageRenderer turns a generated image into a printable page.
type PageRenderer interface {
	Compose(img []byte, title, story string, layout Layout) ([]byte, error)
}

// Layout describes an A4 portrait page in pixels.
type Layout struct {
	Width  int `json:"width"`
	Height int `json:"height"`
	DPI    int `json:"dpi"`
	Margin int `json:"margin"`
	// ImageRatio is the share of the page height given to the image region,
	// which sits directly below the title band. The story fills what remains.
	ImageRatio float64 `json:"image_ratio"`
	// TitleRatio is the share of the page height given to the title band.
	TitleRatio float64 `json:"title_ratio"`
	TitleSize  float64 `json:"title_size"`
	TextSize   float64 `json:"text_size"`
	// Format is "png" or "webp".
	Format string `json:"format"`
}

// A4 at 300 DPI.
func DefaultLayout() Layout {
	return Layout{
		Width:      2480,
		Height:     3508,
		DPI:        300,
		Margin:     120,
		ImageRatio: 0.82,
		TitleRatio: 0.06,
		TitleSize:  26,
		TextSize:   15,
		Format:     "png",
	}
}

func (l Layout) withDefaults() Layout {
	d := DefaultLayout()
	if l.Width <= 0 || l.Height <= 0 {
		l.Width, l.Height = d.Width, d.Height
	}
	if l.DPI <= 0 {
		l.DPI = d.DPI
	}
	if l.Margin < 0 || l.Margin*4 > l.Width {
		l.Margin = d.Margin
	}
	if l.ImageRatio <= 0 || l.ImageRatio >= 1 {
		l.ImageRatio = d.ImageRatio
	}
	if l.TitleRatio <= 0 || l.TitleRatio+l.ImageRatio > 0.95 {
		l.TitleRatio, l.ImageRatio = d.TitleRatio, d.ImageRatio
	}
	if l.TitleSize <= 0 {
		l.TitleSize = d.TitleSize
	}
	if l.TextSize <= 0 {
		l.TextSize = d.TextSize
	}
	if l.Format != "webp" {
		l.Format = "png"
	}
	return l
}

// Renderer composes pages with the Go fonts.
type Renderer struct {
	regular *opentype.Font
	bold    *opentype.Font
	layout  Layout
}

var _ PageRenderer = (*Renderer)(nil)

func NewRenderer(layout Layout) (*Renderer, error) {
	regular, err := opentype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("failed to parse regular font: %w", err)
	}
	bold, err := opentype.Parse(gobold.TTF)
	if err != nil {
		return nil, fmt.Errorf("failed to parse bold font: %w", err)
	}
	return &Renderer{regular: regular, bold: bold, layout: layout.withDefaults()}, nil
}

// Layout returns the renderer's default layout.
func (r *Renderer) Layout() Layout {
	return r.layout
}

// Compose draws title, image and story onto a white page. A zero layout
// uses the renderer's default.
func (r *Renderer) Compose(img []byte, title, story string, layout Layout) ([]byte, error) {
	if layout == (Layout{}) {
		layout = r.layout
	}
	layout = layout.withDefaults()

	src, err := Decode(img)
	if err != nil {
		return nil, err
	}

	page := image.NewRGBA(image.Rect(0, 0, layout.Width, layout.Height))
	draw.Draw(page, page.Bounds(), image.White, image.Point{}, draw.Src)

	titleRegion, imageRegion, textRegion := layout.regions()

	if err := r.drawCentered(page, r.bold, layout, title, layout.TitleSize, titleRegion); err != nil {
		return nil, err
	}

	draw.CatmullRom.Scale(page, fit(src.Bounds(), imageRegion), src, src.Bounds(), draw.Over, nil)

	if err := r.drawParagraph(page, layout, story, textRegion); err != nil {
		return nil, err
	}

	return Encode(page, layout.Format)
}

// regions splits the page into the title band, the image region and the
// story area, top to bottom.
func (l Layout) regions() (title, img, text image.Rectangle) {
	titleBottom := int(float64(l.Height) * l.TitleRatio)
	imageBottom := titleBottom + int(float64(l.Height)*l.ImageRatio)
	left, right := l.Margin, l.Width-l.Margin
	title = image.Rect(left, 0, right, titleBottom)
	img = image.Rect(left, titleBottom, right, imageBottom)
	text = image.Rect(left, imageBottom+l.Margin/4, right, l.Height-l.Margin/2)
	return title, img, text
}

// fit returns the largest rectangle with src's aspect ratio centred in region.
func fit(src, region image.Rectangle) image.Rectangle {
	sw, sh := src.Dx(), src.Dy()
	rw, rh := region.Dx(), region.Dy()
	if sw == 0 || sh == 0 {
		return region
	}
	w, h := rw, sh*rw/sw
	if h > rh {
		w, h = sw*rh/sh, rh
	}
	x := region.Min.X + (rw-w)/2
	y := region.Min.Y + (rh-h)/2
	return image.Rect(x, y, x+w, y+h)
}

func (r *Renderer) face(f *opentype.Font, size float64, dpi int) (font.Face, error) {
	face, err := opentype.NewFace(f, &opentype.FaceOptions{Size: size, DPI: float64(dpi), Hinting: font.HintingFull})
	if err != nil {
		return nil, fmt.Errorf("failed to create font face: %w", err)
	}
	return face, nil
}

func (r *Renderer) drawCentered(dst draw.Image, f *opentype.Font, layout Layout, text string, size float64, region image.Rectangle) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	// Shrink long titles until they fit on one line.
	for ; size >= 8; size -= 2 {
		face, err := r.face(f, size, layout.DPI)
		if err != nil {
			return err
		}
		d := &font.Drawer{Dst: dst, Src: image.Black, Face: face}
		width := d.MeasureString(text).Ceil()
		if width <= region.Dx() || size-2 < 8 {
			m := face.Metrics()
			baseline := region.Min.Y + (region.Dy()+m.Ascent.Ceil()-m.Descent.Ceil())/2
			d.Dot = fixed.P(region.Min.X+max(0, (region.Dx()-width)/2), baseline)
			d.DrawString(text)
			return face.Close()
		}
		_ = face.Close()
	}
	return nil
}

func (r *Renderer) drawParagraph(dst draw.Image, layout Layout, text string, region image.Rectangle) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	for size := layout.TextSize; size >= 8; size-- {
		face, err := r.face(r.regular, size, layout.DPI)
		if err != nil {
			return err
		}
		d := &font.Drawer{Dst: dst, Src: image.NewUniform(color.Gray{Y: 0x22}), Face: face}
		lines := wrap(d, text, region.Dx())
		lineHeight := face.Metrics().Height.Ceil() * 5 / 4
		if len(lines)*lineHeight <= region.Dy() || size-1 < 8 {
			y := region.Min.Y + face.Metrics().Ascent.Ceil()
			for _, line := range lines {
				if y > region.Max.Y {
					break
				}
				w := d.MeasureString(line).Ceil()
				d.Dot = fixed.P(region.Min.X+max(0, (region.Dx()-w)/2), y)
				d.DrawString(line)
				y += lineHeight
			}
			return face.Close()
		}
		_ = face.Close()
	}
	return nil
}

// wrap breaks text into lines no wider than width.
func wrap(d *font.Drawer, text string, width int) []string {
	var lines []string
	for _, para := range strings.Split(text, "\n") {
		words := strings.Fields(para)
		if len(words) == 0 {
			continue
		}
		line := words[0]
		for _, w := range words[1:] {
			candidate := line + " " + w
			if d.MeasureString(candidate).Ceil() > width {
				lines = append(lines, line)
				line = w
				continue
			}
			line = candidate
		}
		lines = append(lines, line)
	}
	return lines
}

// Decode reads a PNG, JPEG or WebP image.
func Decode(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("failed to decode image: empty payload")
	}
	var (
		img image.Image
		err error
	)
	switch utils.DetectImageType(data) {
	case "image/webp":
		img, err = webp.Decode(bytes.NewReader(data))
	case "image/jpeg":
		img, err = jpeg.Decode(bytes.NewReader(data))
	default:
		img, err = png.Decode(bytes.NewReader(data))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return img, nil
}

// Encode writes img as PNG or WebP.
func Encode(img image.Image, format string) ([]byte, error) {
	buf := new(bytes.Buffer)
	switch format {
	case "webp":
		if err := webp.Encode(buf, img, webp.Options{Lossless: false, Quality: 90}); err != nil {
			return nil, fmt.Errorf("failed to encode webp: %w", err)
		}
	default:
		if err := png.Encode(buf, img); err != nil {
			return nil, fmt.Errorf("failed to encode png: %w", err)
		}
	}
	return buf.Bytes(), nil
}
