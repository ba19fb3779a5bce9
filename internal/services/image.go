package services

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	apperrors "treecert/internal/errors"
	"treecert/internal/models"
	"treecert/internal/utils"
)

// ImageService turns a photo into the image and metadata blocks of a
// certificate payload.
type ImageService struct {
	maxDimension int
	jpegQuality  int
	logger       *zap.Logger
}

// NewImageService creates an image service. Photos larger than maxDimension on
// either side are scaled down; 0 keeps the original size.
func NewImageService(maxDimension, jpegQuality int, logger *zap.Logger) *ImageService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ImageService{
		maxDimension: maxDimension,
		jpegQuality:  jpegQuality,
		logger:       logger,
	}
}

// PrepareFile reads a photo from disk and prepares it.
func (s *ImageService) PrepareFile(path string) (models.ImageData, models.ImageMetadata, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return models.ImageData{}, models.ImageMetadata{}, fmt.Errorf("failed to read photo: %w", err)
	}
	return s.Prepare(filepath.Base(path), raw)
}

// Prepare extracts EXIF metadata from raw, converts HEIC/HEIF to JPEG, applies
// the EXIF orientation and scales the photo down when needed. The returned
// ImageData describes the bytes that are actually embedded.
func (s *ImageService) Prepare(fileName string, raw []byte) (models.ImageData, models.ImageMetadata, error) {
	if len(raw) == 0 {
		return models.ImageData{}, models.ImageMetadata{}, fmt.Errorf("%w: empty photo", apperrors.ErrInvalidInput)
	}

	mimeType := utils.DetectMIME(fileName, raw)
	if !strings.HasPrefix(mimeType, "image/") {
		return models.ImageData{}, models.ImageMetadata{}, fmt.Errorf("%w: %s is not an image (%s)", apperrors.ErrInvalidInput, fileName, mimeType)
	}
	heif := utils.IsHeifLike(mimeType)

	var img image.Image
	exifData := raw
	if heif {
		var err error
		img, exifData, err = utils.DecodeHeic(raw)
		if err != nil {
			return models.ImageData{}, models.ImageMetadata{}, fmt.Errorf("%w: %v", apperrors.ErrInvalidInput, err)
		}
	} else {
		var err error
		img, err = utils.DecodeImage(raw)
		if err != nil {
			s.logger.Warn("photo could not be decoded, embedding as-is",
				zap.String("fileName", fileName),
				zap.String("fileType", mimeType),
				zap.Error(err),
			)
		}
	}

	metadata, err := utils.ExtractMetadata(exifData)
	hasMetadata := err == nil
	if err != nil {
		s.logger.Debug("no EXIF metadata", zap.String("fileName", fileName), zap.Error(err))
	}

	out, outName, outType := raw, fileName, mimeType
	if img != nil {
		orient := utils.Orientation(exifData)
		oriented := utils.ApplyOrientation(img, orient)

		if metadata.ImageWidth == 0 || metadata.ImageHeight == 0 {
			b := oriented.Bounds()
			metadata.ImageWidth, metadata.ImageHeight = b.Dx(), b.Dy()
		}

		fitted, resized := utils.FitWithin(oriented, s.maxDimension)
		rotated := orient >= 2 && orient <= 8
		if heif || resized || rotated {
			encoded, err := utils.EncodeJPEG(fitted, s.jpegQuality)
			if err != nil {
				return models.ImageData{}, models.ImageMetadata{}, err
			}
			out, outType = encoded, "image/jpeg"
			if mimeType != "image/jpeg" {
				outName = utils.JPEGName(fileName)
			}
			s.logger.Debug("photo re-encoded",
				zap.String("fileName", outName),
				zap.Int("originalBytes", len(raw)),
				zap.Int("bytes", len(out)),
				zap.Bool("resized", resized),
			)
		}
	}

	data := models.ImageData{
		FileName:    outName,
		FileSize:    int64(len(out)),
		FileType:    outType,
		HasMetadata: hasMetadata,
		Base64Data:  models.EncodeDataURL(outType, out),
	}
	return data, metadata, nil
}
