package utils

import (
	"bytes"
	"fmt"
	"math"
	"strings"
	"time"

	"treecert/internal/models"

	"github.com/rwcarlsen/goexif/exif"
)

// Extracts capture details, camera, dimensions and GPS position from EXIF data.
// Accepts a JPEG, a TIFF or a raw EXIF block. Missing tags leave zero values.
func ExtractMetadata(exifData []byte) (models.ImageMetadata, error) {
	x, err := exif.Decode(bytes.NewReader(exifData))
	if err != nil {
		return models.ImageMetadata{}, fmt.Errorf("failed to decode EXIF: %w", err)
	}

	metadata := models.ImageMetadata{
		Make:        stringTag(x, exif.Make),
		Model:       stringTag(x, exif.Model),
		Software:    stringTag(x, exif.Software),
		Copyright:   models.StringPtr(stringTag(x, exif.Copyright)),
		ImageWidth:  intTag(x, exif.PixelXDimension, exif.ImageWidth),
		ImageHeight: intTag(x, exif.PixelYDimension, exif.ImageLength),
	}

	// DateTime() prefers DateTimeOriginal and falls back to DateTime
	if dt, err := x.DateTime(); err == nil {
		metadata.DateTime = models.FormatTimestamp(dt)
	}

	if lat, ok := gpsTag(x, exif.GPSLatitude, exif.GPSLatitudeRef, "S"); ok {
		metadata.GPSLatitude = lat
	}
	if lng, ok := gpsTag(x, exif.GPSLongitude, exif.GPSLongitudeRef, "W"); ok {
		metadata.GPSLongitude = lng
	}

	return metadata, nil
}

// Reads the EXIF orientation tag, returning 1 (normal) when absent.
func Orientation(exifData []byte) int {
	x, err := exif.Decode(bytes.NewReader(exifData))
	if err != nil {
		return 1
	}
	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return 1
	}
	orient, err := tag.Int(0)
	if err != nil {
		return 1
	}
	return orient
}

// Checks if the metadata carries a GPS position.
func HasLocation(metadata *models.ImageMetadata) bool {
	return metadata.GPSLatitude != (models.GPSCoordinate{}) || metadata.GPSLongitude != (models.GPSCoordinate{})
}

// NormalizeTimestamp converts various timestamp formats to the ISO form used in payloads.
// Supports ISO 8601 with and without zone and the EXIF format (2006:01:02 15:04:05).
// Zone-less inputs are interpreted as UTC.
func NormalizeTimestamp(timestamp string) (string, error) {
	var t time.Time
	var err error

	formats := []string{
		time.RFC3339Nano,      // "2006-01-02T15:04:05.999999999Z07:00"
		"2006:01:02 15:04:05", // EXIF format
		"2006-01-02T15:04:05", // ISO 8601 without timezone
		"2006-01-02",          // date only
	}

	for _, format := range formats {
		t, err = time.Parse(format, strings.TrimSpace(timestamp))
		if err == nil {
			break
		}
	}

	if err != nil {
		return "", fmt.Errorf("failed to parse timestamp %q: %w", timestamp, err)
	}

	return models.FormatTimestamp(t), nil
}

func stringTag(x *exif.Exif, name exif.FieldName) string {
	tag, err := x.Get(name)
	if err != nil {
		return ""
	}
	s, err := tag.StringVal()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(s)
}

// Returns the first integer tag found among names.
func intTag(x *exif.Exif, names ...exif.FieldName) int {
	for _, name := range names {
		tag, err := x.Get(name)
		if err != nil {
			continue
		}
		if v, err := tag.Int(0); err == nil && v > 0 {
			return v
		}
	}
	return 0
}

func gpsTag(x *exif.Exif, name, refName exif.FieldName, negativeRef string) (models.GPSCoordinate, bool) {
	tag, err := x.Get(name)
	if err != nil {
		return models.GPSCoordinate{}, false
	}

	var nums, dens [3]int64
	for i := 0; i < 3; i++ {
		num, den, err := tag.Rat2(i)
		if err != nil {
			return models.GPSCoordinate{}, false
		}
		nums[i], dens[i] = num, den
	}

	negative := strings.EqualFold(stringTag(x, refName), negativeRef)
	return DMSFromRationals(nums, dens, negative)
}

// DMSFromRationals turns the three EXIF rationals of a GPS tag into a
// degrees/minutes/seconds triple, signing the degrees for S or W references.
func DMSFromRationals(nums, dens [3]int64, negative bool) (models.GPSCoordinate, bool) {
	var coord models.GPSCoordinate
	for i := range coord {
		if dens[i] == 0 {
			return models.GPSCoordinate{}, false
		}
		coord[i] = float64(nums[i]) / float64(dens[i])
	}
	if negative {
		coord[0] = math.Copysign(coord[0], -1)
	}
	return coord, true
}
