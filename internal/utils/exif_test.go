package utils

import (
	"testing"

	"treecert/internal/models"
)

func TestNormalizeTimestamp(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		want      string
		wantError bool
	}{
		{
			name:  "ISO 8601 UTC format",
			input: "2025-01-15T14:30:00Z",
			want:  "2025-01-15T14:30:00.000Z",
		},
		{
			name:  "ISO 8601 with offset",
			input: "2025-06-18T07:24:36.5+02:00",
			want:  "2025-06-18T05:24:36.500Z",
		},
		{
			name:  "EXIF format",
			input: "2025:01:15 14:30:00",
			want:  "2025-01-15T14:30:00.000Z",
		},
		{
			name:  "ISO format without Z",
			input: "2025-01-15T14:30:00",
			want:  "2025-01-15T14:30:00.000Z",
		},
		{
			name:  "Date only",
			input: "2026-06-17",
			want:  "2026-06-17T00:00:00.000Z",
		},
		{
			name:      "Invalid format",
			input:     "not a timestamp",
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := NormalizeTimestamp(tt.input)
			if tt.wantError {
				if err == nil {
					t.Errorf("NormalizeTimestamp(%q) expected error, got nil", tt.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("NormalizeTimestamp(%q) unexpected error: %v", tt.input, err)
			}
			if result != tt.want {
				t.Errorf("NormalizeTimestamp(%q) = %q, want %q", tt.input, result, tt.want)
			}
		})
	}
}

func TestDMSFromRationals(t *testing.T) {
	tests := []struct {
		name     string
		nums     [3]int64
		dens     [3]int64
		negative bool
		want     models.GPSCoordinate
		wantOK   bool
	}{
		{
			name:   "north latitude",
			nums:   [3]int64{9, 33, 1208},
			dens:   [3]int64{1, 1, 100},
			want:   models.GPSCoordinate{9, 33, 12.08},
			wantOK: true,
		},
		{
			name:     "west longitude",
			nums:     [3]int64{100, 3, 53},
			dens:     [3]int64{1, 1, 100},
			negative: true,
			want:     models.GPSCoordinate{-100, 3, 0.53},
			wantOK:   true,
		},
		{
			name:   "zero denominator",
			nums:   [3]int64{9, 33, 1208},
			dens:   [3]int64{1, 0, 100},
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := DMSFromRationals(tt.nums, tt.dens, tt.negative)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && got != tt.want {
				t.Errorf("DMSFromRationals() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestExtractMetadata_NoExif(t *testing.T) {
	if _, err := ExtractMetadata([]byte("plain bytes, no exif here")); err == nil {
		t.Error("expected error for data without EXIF")
	}
	if got := Orientation([]byte("plain")); got != 1 {
		t.Errorf("Orientation() = %d, want 1", got)
	}
}

func TestHasLocation(t *testing.T) {
	empty := &models.ImageMetadata{}
	if HasLocation(empty) {
		t.Error("HasLocation() = true for empty metadata")
	}

	located := &models.ImageMetadata{GPSLatitude: models.GPSCoordinate{9, 33, 12.08}}
	if !HasLocation(located) {
		t.Error("HasLocation() = false with latitude set")
	}
}
