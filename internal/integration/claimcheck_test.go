package integration

import (
	"errors"
	"testing"
)

func TestClaimCheckRoundTripFromURL(t *testing.T) {
	loc := Locator{Provider: ProviderGCS, Project: "proj", Location: "us-central1"}
	c, err := ClaimCheckFromURL(loc, "https://storage/bucket1/img123.png", "abc==")
	if err != nil {
		t.Fatalf("ClaimCheckFromURL: %v", err)
	}
	token := c.Format()
	if token != "gcs:proj:us-central1:bucket1:img123.png:abc==" {
		t.Fatalf("token: got=%s", token)
	}
	got, err := ParseClaimCheck(token)
	if err != nil {
		t.Fatalf("ParseClaimCheck: %v", err)
	}
	if got.Bucket != "bucket1" || got.ObjectKey != "img123.png" || got.Checksum != "abc==" {
		t.Fatalf("parsed: want bucket1/img123.png/abc== got=%+v", got)
	}
	if got != c {
		t.Fatalf("round trip: want=%+v got=%+v", c, got)
	}
}

func TestParseClaimCheckKeyWithColon(t *testing.T) {
	got, err := ParseClaimCheck("gcs:p:l:b:2026-01-01T00:00:00/a.png:sum")
	if err != nil {
		t.Fatalf("ParseClaimCheck: %v", err)
	}
	if got.ObjectKey != "2026-01-01T00:00:00/a.png" || got.Checksum != "sum" {
		t.Fatalf("parsed: got=%+v", got)
	}
}

func TestParseClaimCheckRejectsMalformed(t *testing.T) {
	for _, token := range []string{
		"",
		"gcs:p:l:b",
		"gcs:p:l:b:key",
		"gcs:p:l::key:sum",
		"gcs:p:l:b::sum",
		"gcs:p:l:b:key:",
		":p:l:b:key:sum",
	} {
		if _, err := ParseClaimCheck(token); !errors.Is(err, ErrInvalidClaimCheck) {
			t.Fatalf("%q: want ErrInvalidClaimCheck, got=%v", token, err)
		}
	}
}

func TestClaimCheckFromURLForms(t *testing.T) {
	cases := []struct {
		name   string
		loc    Locator
		url    string
		bucket string
		key    string
	}{
		{
			name:   "gcs public",
			url:    "https://storage.googleapis.com/mi-bucket/req-1.png",
			bucket: "mi-bucket",
			key:    "req-1.png",
		},
		{
			name:   "nested key",
			loc:    Locator{Bucket: "mi-bucket"},
			url:    "https://storage.googleapis.com/mi-bucket/images/2026/req-1.png",
			bucket: "mi-bucket",
			key:    "images/2026/req-1.png",
		},
		{
			name:   "emulator media",
			url:    "http://localhost:4443/storage/v1/b/mi-bucket/o/images%2Freq-1.png?alt=media",
			bucket: "mi-bucket",
			key:    "images/req-1.png",
		},
		{
			name:   "cdn without bucket",
			loc:    Locator{Bucket: "mi-bucket"},
			url:    "https://cdn.example.com/req-1.png",
			bucket: "mi-bucket",
			key:    "req-1.png",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, err := ClaimCheckFromURL(tc.loc, tc.url, "sum")
			if err != nil {
				t.Fatalf("ClaimCheckFromURL: %v", err)
			}
			if c.Bucket != tc.bucket || c.ObjectKey != tc.key {
				t.Fatalf("want=%s/%s got=%s/%s", tc.bucket, tc.key, c.Bucket, c.ObjectKey)
			}
			if c.Provider != ProviderGCS {
				t.Fatalf("provider: want=%s got=%s", ProviderGCS, c.Provider)
			}
		})
	}
}

func TestClaimCheckFromURLErrors(t *testing.T) {
	if _, err := ClaimCheckFromURL(Locator{}, "not a url", "sum"); !errors.Is(err, ErrInvalidClaimCheck) {
		t.Fatalf("relative url: want ErrInvalidClaimCheck, got=%v", err)
	}
	if _, err := ClaimCheckFromURL(Locator{}, "https://host/bucket/key.png", "a:b"); !errors.Is(err, ErrInvalidClaimCheck) {
		t.Fatalf("checksum with colon: want ErrInvalidClaimCheck, got=%v", err)
	}
	if _, err := ClaimCheckFromURL(Locator{}, "https://host/key.png", "sum"); !errors.Is(err, ErrInvalidClaimCheck) {
		t.Fatalf("no bucket: want ErrInvalidClaimCheck, got=%v", err)
	}
}
