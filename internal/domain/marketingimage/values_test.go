package marketingimage

import (
	"testing"

	domainagg "github.com/yungbote/marketing-image-engine/internal/domain/aggregates"
)

func TestStatusTransitionTable(t *testing.T) {
	all := []Status{StatusGenerated, StatusReviewing, StatusAccepted, StatusRejected, StatusRemoved}
	allowed := map[Status]map[Status]bool{
		StatusGenerated: {StatusReviewing: true, StatusRemoved: true},
		StatusReviewing: {StatusAccepted: true, StatusRejected: true, StatusRemoved: true},
		StatusAccepted:  {StatusRemoved: true},
		StatusRejected:  {StatusGenerated: true, StatusRemoved: true},
		StatusRemoved:   {},
	}
	for _, from := range all {
		for _, to := range all {
			want := allowed[from][to]
			if got := from.CanTransitionTo(to); got != want {
				t.Fatalf("%s -> %s: want=%v got=%v", from, to, want, got)
			}
		}
	}
}

func TestParseStatus(t *testing.T) {
	s, err := ParseStatus(" reviewing ")
	if err != nil || s != StatusReviewing {
		t.Fatalf("ParseStatus: status=%s err=%v", s, err)
	}
	if _, err := ParseStatus("APPROVED"); err == nil {
		t.Fatalf("expected error for unknown status")
	}
}

func TestParseDimensions(t *testing.T) {
	d, err := ParseDimensions("1024x768")
	if err != nil {
		t.Fatalf("ParseDimensions: %v", err)
	}
	if d.Width != 1024 || d.Height != 768 || d.String() != "1024x768" {
		t.Fatalf("unexpected dimensions: %+v", d)
	}
	for _, raw := range []string{"", "1024", "0x10", "axb", "-1x5"} {
		if _, err := ParseDimensions(raw); !domainagg.IsCode(err, domainagg.CodeMalformedCommand) {
			t.Fatalf("%q: want malformed command, got=%v", raw, err)
		}
	}
}

func TestDimensionsClamp(t *testing.T) {
	lo := Dimensions{Width: 256, Height: 256}
	hi := Dimensions{Width: 1024, Height: 1024}
	got := Dimensions{Width: 100, Height: 2000}.Clamp(lo, hi)
	if got.Width != 256 || got.Height != 1024 {
		t.Fatalf("clamp: got=%+v", got)
	}
	if got := (Dimensions{Width: 5, Height: 5}).Clamp(Dimensions{}, Dimensions{}); got.Width != 5 {
		t.Fatalf("zero bounds should not clamp: got=%+v", got)
	}
}

func TestRequireChecksumRejectsDelimiter(t *testing.T) {
	if _, err := RequireChecksum("ab:c"); err == nil {
		t.Fatalf("expected error for checksum containing ':'")
	}
	if v, err := RequireChecksum(" abc== "); err != nil || v != "abc==" {
		t.Fatalf("RequireChecksum: v=%q err=%v", v, err)
	}
}

func TestRequireMimeType(t *testing.T) {
	if v, err := RequireMimeType("IMAGE/PNG"); err != nil || v != "image/png" {
		t.Fatalf("RequireMimeType: v=%q err=%v", v, err)
	}
	if _, err := RequireMimeType("application/pdf"); err == nil {
		t.Fatalf("expected error for non-image mime type")
	}
}

func TestRequireURL(t *testing.T) {
	for _, raw := range []string{"", "/bucket/key.png", "https://cdn.example.com", "https://cdn.example.com/", "https://cdn.example.com//"} {
		if _, err := RequireURL(raw); err == nil {
			t.Fatalf("RequireURL(%q): want error", raw)
		}
	}
	if v, err := RequireURL(" https://storage/bucket1/img123.png "); err != nil || v != "https://storage/bucket1/img123.png" {
		t.Fatalf("RequireURL: v=%q err=%v", v, err)
	}
}
