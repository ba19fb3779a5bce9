package utils

import (
	"bytes"
	"fmt"
	"image"
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/adrium/goheif"
	"github.com/disintegration/imaging"
)

// Checks if the MIME type indicates a HEIC or HEIF image format.
func IsHeifLike(mimeType string) bool {
	t := strings.ToLower(mimeType)
	return strings.Contains(t, "heic") || strings.Contains(t, "heif")
}

// DetectMIME sniffs the content type, falling back to the file extension for
// formats the sniffer does not know (HEIC in particular).
func DetectMIME(fileName string, data []byte) string {
	sniffed := http.DetectContentType(data)
	if base, _, err := mime.ParseMediaType(sniffed); err == nil {
		sniffed = base
	}
	if sniffed != "application/octet-stream" {
		return sniffed
	}

	switch ext := strings.ToLower(filepath.Ext(fileName)); ext {
	case ".heic":
		return "image/heic"
	case ".heif":
		return "image/heif"
	default:
		if byExt := mime.TypeByExtension(ext); byExt != "" {
			if base, _, err := mime.ParseMediaType(byExt); err == nil {
				return base
			}
		}
	}
	return sniffed
}

// Decodes HEIC/HEIF image data and returns the image with its raw EXIF block, if any.
func DecodeHeic(input []byte) (image.Image, []byte, error) {
	img, err := goheif.Decode(bytes.NewReader(input))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to decode HEIC: %w", err)
	}

	exifData, err := goheif.ExtractExif(bytes.NewReader(input))
	if err != nil {
		return img, nil, nil
	}
	return img, exifData, nil
}

// Decodes any format registered with the image package (JPEG, PNG, GIF, TIFF, BMP).
func DecodeImage(input []byte) (image.Image, error) {
	img, err := imaging.Decode(bytes.NewReader(input))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return img, nil
}

// Applies an EXIF orientation value to the image.
// EXIF orientation values: 1=normal, 2=flip-h, 3=180, 4=flip-v, 5=transpose, 6=270, 7=transverse, 8=90
func ApplyOrientation(img image.Image, orient int) image.Image {
	switch orient {
	case 2:
		return imaging.FlipH(img)
	case 3:
		return imaging.Rotate180(img)
	case 4:
		return imaging.FlipV(img)
	case 5:
		return imaging.Transpose(img)
	case 6:
		return imaging.Rotate270(img)
	case 7:
		return imaging.Transverse(img)
	case 8:
		return imaging.Rotate90(img)
	default:
		return img
	}
}

// Scales the image down so neither side exceeds maxDimension. A non-positive
// maxDimension or an image already inside the box is returned unchanged.
func FitWithin(img image.Image, maxDimension int) (image.Image, bool) {
	b := img.Bounds()
	if maxDimension <= 0 || (b.Dx() <= maxDimension && b.Dy() <= maxDimension) {
		return img, false
	}
	return imaging.Fit(img, maxDimension, maxDimension, imaging.Lanczos), true
}

// Encodes the image as JPEG with the given quality.
func EncodeJPEG(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
		return nil, fmt.Errorf("failed to encode JPEG: %w", err)
	}
	return buf.Bytes(), nil
}

// Replaces the extension of name with .jpg.
func JPEGName(name string) string {
	ext := filepath.Ext(name)
	return strings.TrimSuffix(name, ext) + ".jpg"
}
