package models

import (
	"encoding/json"
	"fmt"
	"time"

	apperrors "treecert/internal/errors"
)

// DefaultFilePrefix is prepended to the tree id when no download name is given.
const DefaultFilePrefix = "baum_zertifikat_"

// Format selects the rendered output type. The service only knows "pdf".
type Format string

const FormatPDF Format = "pdf"

// Template selects the certificate layout. The service only knows "tree-certificate".
type Template string

const TemplateTreeCertificate Template = "tree-certificate"

// HealthStatus is the status tag reported by the health endpoint.
type HealthStatus string

const HealthStatusOK HealthStatus = "OK"

// Certificate holds the human-facing facts printed on the document.
// Dates are ISO-8601 strings, passed through as given.
type Certificate struct {
	Owner        string `json:"owner"`
	Occasion     string `json:"occasion"`
	ExpiryDate   string `json:"expiryDate"`
	TreeID       string `json:"treeId"`
	Photographer string `json:"photographer"`
	CreatedAt    string `json:"createdAt"`
}

// GenerationOptions controls which optional sections appear in the output.
type GenerationOptions struct {
	Format          Format   `json:"format"`
	Template        Template `json:"template"`
	IncludeQRCode   bool     `json:"includeQrCode"`
	IncludeMetadata bool     `json:"includeMetadata"`
	IncludeLocation bool     `json:"includeLocation"`
}

// CertificateData is the complete request payload for /generate-certificate.
type CertificateData struct {
	Certificate Certificate       `json:"certificate"`
	Image       ImageData         `json:"image"`
	Metadata    ImageMetadata     `json:"metadata"`
	Generation  GenerationOptions `json:"generation"`
}

// HealthResponse is the body of a successful /health answer.
type HealthResponse struct {
	Status  HealthStatus `json:"status"`
	Message string       `json:"message"`
}

// IsOK reports whether the service answered with the expected status tag.
func (h HealthResponse) IsOK() bool {
	return h.Status == HealthStatusOK
}

// ErrorResponse is the JSON body the service sends with a non-2xx status.
type ErrorResponse struct {
	Error string `json:"error"`
}

// NewGenerationOptions returns options with the fixed format and template set.
func NewGenerationOptions(qrCode, metadata, location bool) GenerationOptions {
	return GenerationOptions{
		Format:          FormatPDF,
		Template:        TemplateTreeCertificate,
		IncludeQRCode:   qrCode,
		IncludeMetadata: metadata,
		IncludeLocation: location,
	}
}

// DefaultGenerationOptions enables every optional section.
func DefaultGenerationOptions() GenerationOptions {
	return NewGenerationOptions(true, true, true)
}

// DefaultFileName builds the download name used when the caller supplies none.
func (d *CertificateData) DefaultFileName() string {
	return DefaultFilePrefix + d.Certificate.TreeID + ".pdf"
}

// FormatTimestamp renders t the way browsers serialise dates: UTC with
// millisecond precision, e.g. "2025-06-18T05:24:36.000Z".
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z07:00")
}

// ParseFormat accepts only "pdf".
func ParseFormat(s string) (Format, error) {
	if f := Format(s); f.Valid() {
		return f, nil
	}
	return "", fmt.Errorf("%w: unsupported format %q", apperrors.ErrInvalidInput, s)
}

func (f Format) Valid() bool {
	return f == FormatPDF
}

func (f Format) MarshalJSON() ([]byte, error) {
	if !f.Valid() {
		return nil, fmt.Errorf("%w: unsupported format %q", apperrors.ErrInvalidInput, string(f))
	}
	return json.Marshal(string(f))
}

func (f *Format) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseFormat(s)
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}

// ParseTemplate accepts only "tree-certificate".
func ParseTemplate(s string) (Template, error) {
	if t := Template(s); t.Valid() {
		return t, nil
	}
	return "", fmt.Errorf("%w: unsupported template %q", apperrors.ErrInvalidInput, s)
}

func (t Template) Valid() bool {
	return t == TemplateTreeCertificate
}

func (t Template) MarshalJSON() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("%w: unsupported template %q", apperrors.ErrInvalidInput, string(t))
	}
	return json.Marshal(string(t))
}

func (t *Template) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseTemplate(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
