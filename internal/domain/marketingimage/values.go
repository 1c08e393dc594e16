package marketingimage

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	domainagg "github.com/yungbote/marketing-image-engine/internal/domain/aggregates"
)

type Dimensions struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

func NewDimensions(width, height int) (Dimensions, error) {
	if width <= 0 || height <= 0 {
		return Dimensions{}, domainagg.Malformed("marketingimage.dimensions", fmt.Sprintf("dimensions must be positive, got %dx%d", width, height))
	}
	return Dimensions{Width: width, Height: height}, nil
}

// ParseDimensions reads the "WxH" form, e.g. "1024x768".
func ParseDimensions(raw string) (Dimensions, error) {
	parts := strings.Split(strings.ToLower(strings.TrimSpace(raw)), "x")
	if len(parts) != 2 {
		return Dimensions{}, domainagg.Malformed("marketingimage.dimensions", fmt.Sprintf("expected WxH, got %q", raw))
	}
	w, errW := strconv.Atoi(strings.TrimSpace(parts[0]))
	h, errH := strconv.Atoi(strings.TrimSpace(parts[1]))
	if errW != nil || errH != nil {
		return Dimensions{}, domainagg.Malformed("marketingimage.dimensions", fmt.Sprintf("expected WxH, got %q", raw))
	}
	return NewDimensions(w, h)
}

func (d Dimensions) String() string { return fmt.Sprintf("%dx%d", d.Width, d.Height) }

func (d Dimensions) IsZero() bool { return d.Width == 0 && d.Height == 0 }

// Clamp bounds d to [lo, hi] on each axis. Zero bounds are ignored.
func (d Dimensions) Clamp(lo, hi Dimensions) Dimensions {
	out := d
	if !lo.IsZero() {
		if out.Width < lo.Width {
			out.Width = lo.Width
		}
		if out.Height < lo.Height {
			out.Height = lo.Height
		}
	}
	if !hi.IsZero() {
		if out.Width > hi.Width {
			out.Width = hi.Width
		}
		if out.Height > hi.Height {
			out.Height = hi.Height
		}
	}
	return out
}

// Keywords keeps insertion order, drops blanks and case-insensitive duplicates.
type Keywords []string

func NewKeywords(raw []string) Keywords {
	seen := make(map[string]struct{}, len(raw))
	out := make(Keywords, 0, len(raw))
	for _, k := range raw {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		key := strings.ToLower(k)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, k)
	}
	return out
}

func (k Keywords) Equal(other Keywords) bool {
	if len(k) != len(other) {
		return false
	}
	for i := range k {
		if k[i] != other[i] {
			return false
		}
	}
	return true
}

func (k Keywords) Clone() Keywords {
	if k == nil {
		return nil
	}
	out := make(Keywords, len(k))
	copy(out, k)
	return out
}

// GenerationParameters records the knobs the generator was called with.
type GenerationParameters map[string]any

func (p GenerationParameters) Clone() GenerationParameters {
	if p == nil {
		return nil
	}
	out := make(GenerationParameters, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

func RequireDescription(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", domainagg.Malformed("marketingimage.description", "description is required")
	}
	return s, nil
}

func RequireChecksum(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", domainagg.Malformed("marketingimage.checksum", "checksum is required")
	}
	if strings.Contains(s, ":") {
		return "", domainagg.Malformed("marketingimage.checksum", "checksum must not contain ':'")
	}
	return s, nil
}

func RequireMimeType(raw string) (string, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	if !strings.HasPrefix(s, "image/") || len(s) == len("image/") {
		return "", domainagg.Malformed("marketingimage.mime_type", fmt.Sprintf("unsupported mime type %q", raw))
	}
	return s, nil
}

func RequireSize(size int64) (int64, error) {
	if size <= 0 {
		return 0, domainagg.Malformed("marketingimage.size", fmt.Sprintf("size must be positive, got %d", size))
	}
	return size, nil
}

func RequireURL(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	u, err := url.Parse(s)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", domainagg.Malformed("marketingimage.url", fmt.Sprintf("url must be absolute, got %q", raw))
	}
	if strings.Trim(u.Path, "/") == "" {
		return "", domainagg.Malformed("marketingimage.url", fmt.Sprintf("url must address an object, got %q", raw))
	}
	return s, nil
}

func RequireModel(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", domainagg.Malformed("marketingimage.generation_model", "generation model is required")
	}
	return s, nil
}

func RequireActor(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", domainagg.Malformed("marketingimage.actor", "requestor is required")
	}
	return s, nil
}
