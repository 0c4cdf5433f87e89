package render

import (
	"bytes"
	"context"
	"fmt"
	"strconv"

	"github.com/go-pdf/fpdf"
	"golang.org/x/sync/errgroup"

	"storybook/pkg/utils"
)

const (
	a4Width  = 210.0
	a4Height = 297.0
)

// Book assembles full pages into one A4 PDF, one page per image, in order.
func Book(ctx context.Context, title string, pages [][]byte) ([]byte, error) {
	if len(pages) == 0 {
		return nil, fmt.Errorf("book has no pages")
	}

	// WebP is not embeddable, so pages are normalised to PNG or JPEG first.
	prepared := make([][]byte, len(pages))
	kinds := make([]string, len(pages))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, page := range pages {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			switch utils.DetectImageType(page) {
			case "image/png":
				prepared[i], kinds[i] = page, "PNG"
			case "image/jpeg":
				prepared[i], kinds[i] = page, "JPG"
			default:
				img, err := Decode(page)
				if err != nil {
					return fmt.Errorf("page %d: %w", i+1, err)
				}
				data, err := Encode(img, "png")
				if err != nil {
					return fmt.Errorf("page %d: %w", i+1, err)
				}
				prepared[i], kinds[i] = data, "PNG"
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(title, true)
	pdf.SetCreator("storybook", true)
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)

	for i, data := range prepared {
		name := "page" + strconv.Itoa(i+1)
		opts := fpdf.ImageOptions{ImageType: kinds[i]}
		pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(data))
		pdf.AddPage()
		pdf.ImageOptions(name, 0, 0, a4Width, a4Height, false, opts, 0, "")
		if pdf.Err() {
			return nil, fmt.Errorf("failed to add page %d: %w", i+1, pdf.Error())
		}
	}

	buf := new(bytes.Buffer)
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("failed to write pdf: %w", err)
	}
	return buf.Bytes(), nil
}
