package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	apperrors "treecert/internal/errors"
	"treecert/internal/models"
	"treecert/internal/services"
	"treecert/internal/utils"
)

// certFlags collects the certificate facts given on the command line.
type certFlags struct {
	owner        string
	occasion     string
	expiry       string
	treeID       string
	photographer string
	photo        string
	noQRCode     bool
	noMetadata   bool
	noLocation   bool
}

func (f *certFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVar(&f.photo, "photo", "", "photo to embed (JPEG, PNG or HEIC)")
	fs.StringVar(&f.owner, "owner", "", "certificate owner")
	fs.StringVar(&f.occasion, "occasion", "", "occasion the tree was planted for")
	fs.StringVar(&f.expiry, "expiry", "", "expiry date (ISO-8601, e.g. 2035-04-01)")
	fs.StringVar(&f.treeID, "tree-id", "", "tree identifier")
	fs.StringVar(&f.photographer, "photographer", "", "photographer credit")
	fs.BoolVar(&f.noQRCode, "no-qr", false, "omit the QR code")
	fs.BoolVar(&f.noMetadata, "no-metadata", false, "omit the photo metadata section")
	fs.BoolVar(&f.noLocation, "no-location", false, "omit the GPS location")
}

// build assembles a payload from the flags and the prepared photo.
func (f *certFlags) build(images *services.ImageService, now time.Time) (*models.CertificateData, error) {
	if f.photo == "" {
		return nil, fmt.Errorf("--photo is required")
	}

	expiry := f.expiry
	if expiry != "" {
		normalized, err := utils.NormalizeTimestamp(expiry)
		if err != nil {
			return nil, fmt.Errorf("%w: --expiry: %v", apperrors.ErrInvalidInput, err)
		}
		expiry = normalized
	}

	image, metadata, err := images.PrepareFile(f.photo)
	if err != nil {
		return nil, err
	}

	return &models.CertificateData{
		Certificate: models.Certificate{
			Owner:        f.owner,
			Occasion:     f.occasion,
			ExpiryDate:   expiry,
			TreeID:       f.treeID,
			Photographer: f.photographer,
			CreatedAt:    models.FormatTimestamp(now),
		},
		Image:    image,
		Metadata: metadata,
		// A photo without GPS has no location to print.
		Generation: models.NewGenerationOptions(!f.noQRCode, !f.noMetadata, !f.noLocation && utils.HasLocation(&metadata)),
	}, nil
}

// loadPayload reads a complete payload written by "certctl prepare".
func loadPayload(path string) (*models.CertificateData, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read payload: %w", err)
	}
	var data models.CertificateData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("invalid payload %s: %w", path, err)
	}
	return &data, nil
}

// ── prepare ──────────────────────────────────────────────────────────────────

var (
	prepareFlags certFlags
	prepareOut   string
)

var prepareCmd = &cobra.Command{
	Use:   "prepare --photo P [certificate flags]",
	Short: "Build a certificate payload from a photo",
	Long: `Prepare reads the photo, extracts its EXIF metadata, converts HEIC to JPEG,
scales it down if needed and writes the JSON payload the certificate service
expects. The payload can be edited and passed to "certctl download --payload".`,
	Args: cobra.NoArgs,
	RunE: runPrepare,
}

func init() {
	prepareFlags.register(prepareCmd)
	prepareCmd.Flags().StringVar(&prepareOut, "out", "", "write the payload here instead of stdout")
}

func runPrepare(cmd *cobra.Command, args []string) error {
	images := services.NewImageService(cfg.ImageMaxDimension, cfg.JPEGQuality, logger)
	data, err := prepareFlags.build(images, time.Now())
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return err
	}
	out = append(out, '\n')

	if prepareOut == "" {
		_, err = cmd.OutOrStdout().Write(out)
		return err
	}
	if err := os.WriteFile(prepareOut, out, 0o644); err != nil {
		return fmt.Errorf("failed to write payload: %w", err)
	}
	logger.Info("payload written",
		zap.String("path", prepareOut),
		zap.String("image", data.Image.FileName),
		zap.Bool("hasMetadata", data.Image.HasMetadata),
	)
	return nil
}

// ── download ─────────────────────────────────────────────────────────────────

var (
	downloadFlags    certFlags
	downloadPayload  string
	downloadFilename string
)

var downloadCmd = &cobra.Command{
	Use:   "download (--payload F | --photo P [certificate flags])",
	Short: "Generate a certificate and save it",
	Long: `Download sends the payload to the certificate service and saves the returned
PDF through the configured target (SAVE_TARGET). The default file name is
baum_zertifikat_<tree id>.pdf. When the ledger is enabled the issued
certificate is recorded in Firestore.`,
	Args: cobra.NoArgs,
	RunE: runDownload,
}

func init() {
	downloadFlags.register(downloadCmd)
	downloadCmd.Flags().StringVar(&downloadPayload, "payload", "", "payload JSON written by prepare")
	downloadCmd.Flags().StringVar(&downloadFilename, "filename", "", "file name to save under")
	downloadCmd.MarkFlagsMutuallyExclusive("payload", "photo")
}

func runDownload(cmd *cobra.Command, args []string) error {
	svcs, err := initServices(cmd)
	if err != nil {
		return err
	}
	defer svcs.Close()

	var data *models.CertificateData
	if downloadPayload != "" {
		data, err = loadPayload(downloadPayload)
	} else {
		data, err = downloadFlags.build(svcs.Image, time.Now())
	}
	if err != nil {
		return err
	}

	var opts []services.DownloadOption
	if cmd.Flags().Changed("filename") {
		opts = append(opts, services.WithFilename(downloadFilename))
	}

	var ledger certificateRecorder
	if svcs.Ledger != nil {
		ledger = svcs.Ledger
	}

	res, err := downloadAndRecord(cmd.Context(), svcs.Client, ledger, data, opts...)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), res.Location)
	return nil
}

// certificateRecorder is the part of the ledger a download needs.
type certificateRecorder interface {
	Record(ctx context.Context, entry *models.IssuedCertificate) (string, error)
}

// downloadAndRecord saves the certificate and, when a ledger is given, records
// it. A failed ledger write is logged only; the certificate is already saved.
func downloadAndRecord(ctx context.Context, client *services.CertificateClient, ledger certificateRecorder, data *models.CertificateData, opts ...services.DownloadOption) (*services.DownloadResult, error) {
	res, err := client.DownloadCertificate(ctx, data, opts...)
	if err != nil {
		return nil, err
	}
	if ledger == nil {
		return res, nil
	}

	entry := models.NewIssuedCertificate(data, res.FileName, res.Location, res.Size, time.Now().UTC())
	id, err := ledger.Record(ctx, entry)
	if err != nil {
		logger.Warn("failed to record issued certificate",
			zap.String("treeId", entry.TreeID),
			zap.Error(err),
		)
		return res, nil
	}
	logger.Info("issued certificate recorded", zap.String("id", id))
	return res, nil
}
