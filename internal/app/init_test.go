package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"treecert/internal/config"
	"treecert/internal/models"
)

func fileConfig(t *testing.T, baseURL string) *config.Config {
	t.Helper()
	return &config.Config{
		CertificateAPIURL:    baseURL,
		RequestTimeout:       5 * time.Second,
		RateLimitRPS:         50,
		RateLimitBurst:       5,
		CacheTTL:             time.Minute,
		CacheCleanupInterval: time.Minute,
		SaveTarget:           config.SaveTargetFile,
		OutputDir:            t.TempDir(),
		FirestoreCollection:  "certificates",
		ImageMaxDimension:    2048,
		JPEGQuality:          90,
	}
}

func TestInitServices_FileTarget(t *testing.T) {
	var posts int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/generate-certificate" {
			http.NotFound(w, r)
			return
		}
		posts++
		w.Header().Set("Content-Type", "application/pdf")
		w.Write([]byte("%PDF-1.7 test"))
	}))
	defer srv.Close()

	cfg := fileConfig(t, srv.URL+"/")
	svcs, err := InitServices(context.Background(), cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("InitServices: %v", err)
	}
	defer svcs.Close()

	if svcs.Ledger != nil || svcs.Storage != nil {
		t.Error("google services created for a file-only configuration")
	}
	if svcs.Cache == nil {
		t.Fatal("Cache = nil with CACHE_TTL set")
	}
	if svcs.Client.BaseURL() != srv.URL {
		t.Errorf("BaseURL = %q, want %q", svcs.Client.BaseURL(), srv.URL)
	}

	data := &models.CertificateData{
		Certificate: models.Certificate{TreeID: "VE-229", Owner: "Anna"},
		Generation:  models.DefaultGenerationOptions(),
	}
	for i := 0; i < 2; i++ {
		res, err := svcs.Client.DownloadCertificate(context.Background(), data)
		if err != nil {
			t.Fatalf("DownloadCertificate: %v", err)
		}
		if !strings.HasSuffix(res.Location, "baum_zertifikat_VE-229.pdf") {
			t.Errorf("Location = %q", res.Location)
		}
	}
	if posts != 1 {
		t.Errorf("server saw %d posts, want 1 with the document cache enabled", posts)
	}

	got, err := os.ReadFile(filepath.Join(cfg.OutputDir, "baum_zertifikat_VE-229.pdf"))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(got) != "%PDF-1.7 test" {
		t.Errorf("saved %q", got)
	}

	if err := svcs.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}

func TestInitServices_InvalidConfig(t *testing.T) {
	cfg := fileConfig(t, "http://localhost:8000")
	cfg.SaveTarget = "ftp"

	if _, err := InitServices(context.Background(), cfg, nil); err == nil {
		t.Fatal("expected error for unknown save target")
	}
}

func TestCredentials(t *testing.T) {
	if got := credentials(&config.Config{}); got != nil {
		t.Errorf("credentials() = %v, want none", got)
	}
	if got := credentials(&config.Config{GoogleCredentialsPath: "sa.json"}); len(got) != 1 {
		t.Errorf("credentials(path) returned %d options", len(got))
	}
	if got := credentials(&config.Config{GoogleCredentialsJSON: "{}", GoogleCredentialsPath: "sa.json"}); len(got) != 1 {
		t.Errorf("credentials(json+path) returned %d options", len(got))
	}
}
