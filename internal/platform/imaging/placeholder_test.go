package imaging

import (
	"bytes"
	"context"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"testing"

	domainagg "github.com/yungbote/marketing-image-engine/internal/domain/aggregates"
	"github.com/yungbote/marketing-image-engine/internal/domain/marketingimage"
	"github.com/yungbote/marketing-image-engine/internal/platform/logger"
)

func newTestGenerator(t *testing.T) *PlaceholderGenerator {
	t.Helper()
	g, err := NewPlaceholderGenerator(logger.Nop())
	if err != nil {
		t.Fatalf("NewPlaceholderGenerator: %v", err)
	}
	return g
}

func TestGeneratePNGWithinBounds(t *testing.T) {
	g := newTestGenerator(t)
	out, err := g.Generate(context.Background(), GenerateRequest{
		Prompt:        "three pineapples",
		MaxDimensions: marketingimage.Dimensions{Width: 320, Height: 200},
		MimeType:      "image/png",
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if out.Dimensions.Width != 320 || out.Dimensions.Height != 200 {
		t.Fatalf("dimensions: want=320x200 got=%s", out.Dimensions)
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(out.Bytes))
	if err != nil {
		t.Fatalf("DecodeConfig: %v", err)
	}
	if format != "png" || cfg.Width != 320 || cfg.Height != 200 {
		t.Fatalf("decoded: format=%s size=%dx%d", format, cfg.Width, cfg.Height)
	}
	if out.Model != PlaceholderModel || out.Parameters["prompt"] != "three pineapples" {
		t.Fatalf("model/parameters: got=%s %v", out.Model, out.Parameters)
	}
}

func TestGenerateJPEG(t *testing.T) {
	g := newTestGenerator(t)
	out, err := g.Generate(context.Background(), GenerateRequest{
		Prompt:        "sunset",
		MinDimensions: marketingimage.Dimensions{Width: 64, Height: 64},
		MaxDimensions: marketingimage.Dimensions{Width: 96, Height: 64},
		MimeType:      "image/jpeg",
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	_, format, err := image.DecodeConfig(bytes.NewReader(out.Bytes))
	if err != nil || format != "jpeg" {
		t.Fatalf("decoded: format=%s err=%v", format, err)
	}
}

func TestGenerateRejectsUnsupportedMime(t *testing.T) {
	g := newTestGenerator(t)
	_, err := g.Generate(context.Background(), GenerateRequest{Prompt: "x", MimeType: "image/webp"})
	if !domainagg.IsCode(err, domainagg.CodeMalformedCommand) {
		t.Fatalf("want malformed command, got=%v", err)
	}
}

func TestGenerateCancelled(t *testing.T) {
	g := newTestGenerator(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := g.Generate(ctx, GenerateRequest{Prompt: "x", MimeType: "image/png"})
	if !domainagg.IsCode(err, domainagg.CodeOperationCancelled) {
		t.Fatalf("want operation cancelled, got=%v", err)
	}
}

func TestPickColorIsStable(t *testing.T) {
	g := newTestGenerator(t)
	if g.pickColor("Pineapple") != g.pickColor("pineapple") {
		t.Fatalf("colour should not depend on case")
	}
}
