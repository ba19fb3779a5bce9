package models

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	apperrors "treecert/internal/errors"
)

// ImageData carries the photo embedded in the certificate.
type ImageData struct {
	FileName    string `json:"fileName"`
	FileSize    int64  `json:"fileSize"`
	FileType    string `json:"fileType"`
	HasMetadata bool   `json:"hasMetadata"`
	Base64Data  string `json:"base64Data"` // data URL: "data:<mime>;base64,<payload>"
}

// ImageMetadata is the EXIF summary printed in the metadata and location blocks.
type ImageMetadata struct {
	DateTime     string        `json:"dateTime"`
	Make         string        `json:"make"`
	Model        string        `json:"model"`
	ImageWidth   int           `json:"imageWidth"`
	ImageHeight  int           `json:"imageHeight"`
	GPSLatitude  GPSCoordinate `json:"gpsLatitude"`
	GPSLongitude GPSCoordinate `json:"gpsLongitude"`
	Software     string        `json:"software"`
	Copyright    *string       `json:"copyright"`
}

// GPSCoordinate is a (degrees, minutes, seconds) triple. The hemisphere is
// carried by the sign of the degrees component.
type GPSCoordinate [3]float64

// UnmarshalJSON rejects arrays that do not have exactly three components.
func (g *GPSCoordinate) UnmarshalJSON(data []byte) error {
	var parts []float64
	if err := json.Unmarshal(data, &parts); err != nil {
		return err
	}
	if len(parts) != 3 {
		return fmt.Errorf("%w: gps coordinate needs 3 components, got %d", apperrors.ErrInvalidInput, len(parts))
	}
	copy(g[:], parts)
	return nil
}

// Decimal converts the triple to signed decimal degrees.
func (g GPSCoordinate) Decimal() float64 {
	v := math.Abs(g[0]) + g[1]/60 + g[2]/3600
	if math.Signbit(g[0]) {
		return -v
	}
	return v
}

// GPSFromDecimal splits signed decimal degrees into a degrees/minutes/seconds triple.
func GPSFromDecimal(v float64) GPSCoordinate {
	abs := math.Abs(v)
	deg := math.Floor(abs)
	minutes := math.Floor((abs - deg) * 60)
	seconds := (abs - deg - minutes/60) * 3600
	// Round to 1/100 of an arc second, which is what cameras record.
	seconds = math.Round(seconds*100) / 100
	if seconds >= 60 {
		seconds -= 60
		minutes++
	}
	if minutes >= 60 {
		minutes -= 60
		deg++
	}
	if v < 0 {
		deg = math.Copysign(deg, -1)
	}
	return GPSCoordinate{deg, minutes, seconds}
}

// StringPtr returns nil for an empty string, otherwise a pointer to s.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// EncodeDataURL embeds data in a base64 data URL.
func EncodeDataURL(mimeType string, data []byte) string {
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// DecodeDataURL splits a base64 data URL into its MIME type and payload.
func DecodeDataURL(dataURL string) (string, []byte, error) {
	rest, ok := strings.CutPrefix(dataURL, "data:")
	if !ok {
		return "", nil, fmt.Errorf("%w: not a data URL", apperrors.ErrInvalidInput)
	}
	mimeType, payload, ok := strings.Cut(rest, ";base64,")
	if !ok {
		return "", nil, fmt.Errorf("%w: data URL is not base64 encoded", apperrors.ErrInvalidInput)
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", apperrors.ErrInvalidInput, err)
	}
	return mimeType, data, nil
}
