package imaging

import (
	"bytes"
	"context"
	"fmt"
	"hash/fnv"
	"image/color"
	"image/gif"
	"image/jpeg"
	"strings"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"

	domainagg "github.com/yungbote/marketing-image-engine/internal/domain/aggregates"
	"github.com/yungbote/marketing-image-engine/internal/domain/marketingimage"
	"github.com/yungbote/marketing-image-engine/internal/platform/logger"
)

const PlaceholderModel = "placeholder-card"

type GenerateRequest struct {
	Prompt        string
	MinDimensions marketingimage.Dimensions
	MaxDimensions marketingimage.Dimensions
	MimeType      string
}

type GeneratedImage struct {
	Bytes      []byte
	Dimensions marketingimage.Dimensions
	MimeType   string
	Model      string
	Parameters map[string]any
}

var defaultPalette = []color.NRGBA{
	{R: 0x1F, G: 0x6F, B: 0xEB, A: 0xFF},
	{R: 0xE3, G: 0x6B, B: 0x2C, A: 0xFF},
	{R: 0x2E, G: 0x9E, B: 0x6B, A: 0xFF},
	{R: 0x8E, G: 0x44, B: 0xAD, A: 0xFF},
	{R: 0xC0, G: 0x39, B: 0x2B, A: 0xFF},
	{R: 0x16, G: 0xA0, B: 0x85, A: 0xFF},
}

// PlaceholderGenerator renders the prompt onto a flat card. It stands in for
// a real model in local and test deployments.
type PlaceholderGenerator struct {
	log         *logger.Logger
	font        *truetype.Font
	palette     []color.NRGBA
	defaultSize marketingimage.Dimensions
}

func NewPlaceholderGenerator(log *logger.Logger) (*PlaceholderGenerator, error) {
	parsed, err := truetype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("failed to parse TTF: %w", err)
	}
	return &PlaceholderGenerator{
		log:         log.With("service", "PlaceholderGenerator"),
		font:        parsed,
		palette:     defaultPalette,
		defaultSize: marketingimage.Dimensions{Width: 1024, Height: 1024},
	}, nil
}

func (g *PlaceholderGenerator) Generate(ctx context.Context, req GenerateRequest) (GeneratedImage, error) {
	const op = "PlaceholderGenerator.Generate"
	if err := ctx.Err(); err != nil {
		return GeneratedImage{}, domainagg.Wrap(domainagg.CodeOperationCancelled, op, err)
	}
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return GeneratedImage{}, domainagg.Malformed(op, "prompt is required")
	}
	mime, err := marketingimage.RequireMimeType(req.MimeType)
	if err != nil {
		return GeneratedImage{}, err
	}

	dims := g.defaultSize.Clamp(req.MinDimensions, req.MaxDimensions)
	w, h := dims.Width, dims.Height
	bg := g.pickColor(prompt)
	fontSize := float64(min(w, h)) / 14
	if fontSize < 8 {
		fontSize = 8
	}

	dc := gg.NewContext(w, h)
	dc.SetColor(bg)
	dc.DrawRectangle(0, 0, float64(w), float64(h))
	dc.Fill()

	dc.SetFontFace(truetype.NewFace(g.font, &truetype.Options{
		Size:    fontSize,
		DPI:     72,
		Hinting: font.HintingNone,
	}))
	dc.SetColor(color.White)
	margin := float64(w) * 0.08
	dc.DrawStringWrapped(prompt, float64(w)/2, float64(h)/2, 0.5, 0.5, float64(w)-2*margin, 1.4, gg.AlignCenter)

	var buf bytes.Buffer
	switch mime {
	case "image/png":
		err = dc.EncodePNG(&buf)
	case "image/jpeg", "image/jpg":
		mime = "image/jpeg"
		err = jpeg.Encode(&buf, dc.Image(), &jpeg.Options{Quality: 90})
	case "image/gif":
		err = gif.Encode(&buf, dc.Image(), nil)
	default:
		return GeneratedImage{}, domainagg.Malformed(op, fmt.Sprintf("placeholder generator cannot encode %s", mime))
	}
	if err != nil {
		return GeneratedImage{}, domainagg.Wrap(domainagg.CodeInternal, op, fmt.Errorf("encode %s: %w", mime, err))
	}

	g.log.Debug("Placeholder rendered", "width", w, "height", h, "mime_type", mime, "bytes", buf.Len())
	return GeneratedImage{
		Bytes:      buf.Bytes(),
		Dimensions: dims,
		MimeType:   mime,
		Model:      PlaceholderModel,
		Parameters: map[string]any{
			"prompt":     prompt,
			"background": nrgbaToHex(bg),
			"font_size":  fontSize,
		},
	}, nil
}

// Same prompt, same colour.
func (g *PlaceholderGenerator) pickColor(prompt string) color.NRGBA {
	h := fnv.New32a()
	_, _ = h.Write([]byte(strings.ToLower(prompt)))
	return g.palette[int(h.Sum32()%uint32(len(g.palette)))]
}

func nrgbaToHex(c color.NRGBA) string {
	return fmt.Sprintf("#%02X%02X%02X", c.R, c.G, c.B)
}
