package gcp

import (
	"errors"
	"testing"
)

func TestResolveObjectStorageConfig(t *testing.T) {
	cases := []struct {
		name         string
		mode, host   string
		wantMode     ObjectStorageMode
		wantFallback bool
		wantSource   string
	}{
		{"default gcs", "", "", ObjectStorageModeGCS, false, "explicit_or_default"},
		{"explicit gcs ignores emulator host", "gcs", "http://fake-gcs:4443", ObjectStorageModeGCS, false, "explicit_or_default"},
		{"explicit emulator", " GCS_EMULATOR ", "http://fake-gcs:4443", ObjectStorageModeGCSEmulator, false, "explicit_or_default"},
		{"emulator host alone", "", "http://fake-gcs:4443", ObjectStorageModeGCSEmulator, true, "compatibility_fallback"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg, err := ResolveObjectStorageConfig(tc.mode, tc.host)
			if err != nil {
				t.Fatalf("ResolveObjectStorageConfig: %v", err)
			}
			if cfg.Mode != tc.wantMode || cfg.CompatibilityFallback != tc.wantFallback {
				t.Fatalf("config: want mode=%s fallback=%v got mode=%s fallback=%v", tc.wantMode, tc.wantFallback, cfg.Mode, cfg.CompatibilityFallback)
			}
			if cfg.IsEmulatorMode() != (tc.wantMode == ObjectStorageModeGCSEmulator) {
				t.Fatalf("IsEmulatorMode: got=%v for mode=%s", cfg.IsEmulatorMode(), cfg.Mode)
			}
			if got := cfg.ModeSource(); got != tc.wantSource {
				t.Fatalf("ModeSource: want=%s got=%s", tc.wantSource, got)
			}
		})
	}
}

func TestResolveObjectStorageConfigErrors(t *testing.T) {
	cases := []struct {
		name       string
		mode, host string
		wantCode   ObjectStorageConfigErrorCode
	}{
		{"unknown mode", "s3", "", ObjectStorageConfigErrorInvalidMode},
		{"emulator without host", "gcs_emulator", "", ObjectStorageConfigErrorMissingEmulatorHost},
		{"emulator host without scheme", "gcs_emulator", "fake-gcs:4443", ObjectStorageConfigErrorInvalidEmulatorHost},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ResolveObjectStorageConfig(tc.mode, tc.host)
			var cfgErr *ObjectStorageConfigError
			if !errors.As(err, &cfgErr) || cfgErr.Code != tc.wantCode {
				t.Fatalf("error: want code=%s got=%v", tc.wantCode, err)
			}
		})
	}
}

func TestObjectStorageModeSupport(t *testing.T) {
	if !IsSupportedObjectStorageMode(ObjectStorageModeGCS) || !IsSupportedObjectStorageMode(ObjectStorageModeGCSEmulator) {
		t.Fatalf("gcs and gcs_emulator should be supported")
	}
	if IsSupportedObjectStorageMode(ObjectStorageMode("local")) {
		t.Fatalf("local should not be supported")
	}
	if IsEmulatorObjectStorageMode(ObjectStorageModeGCS) {
		t.Fatalf("gcs should not be emulator mode")
	}
}
