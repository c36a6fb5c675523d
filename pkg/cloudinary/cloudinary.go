package cloudinary

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/rs/zerolog"
)

// ErrMissingCredentials is returned when the archive is configured without credentials.
var ErrMissingCredentials = errors.New("cloudinary credentials must be provided")

// Config contains credentials required to talk to Cloudinary.
type Config struct {
	CloudName string
	APIKey    string
	APISecret string
	Folder    string
}

// ReportArchive stores plain-text evaluation reports as raw Cloudinary assets.
type ReportArchive struct {
	client *cloudinary.Cloudinary
	folder string
	logger zerolog.Logger
	now    func() time.Time
}

// New constructs a report archive backed by Cloudinary.
func New(cfg Config, logger zerolog.Logger) (*ReportArchive, error) {
	if cfg.CloudName == "" || cfg.APIKey == "" || cfg.APISecret == "" {
		return nil, ErrMissingCredentials
	}

	cld, err := cloudinary.NewFromParams(cfg.CloudName, cfg.APIKey, cfg.APISecret)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cloudinary: %w", err)
	}

	return &ReportArchive{
		client: cld,
		folder: strings.Trim(cfg.Folder, "/"),
		logger: logger.With().Str("component", "cloudinary").Logger(),
		now:    time.Now,
	}, nil
}

// Upload stores the report and returns its secure URL.
func (a *ReportArchive) Upload(ctx context.Context, name string, reader io.Reader) (string, error) {
	publicID := buildPublicID(name, a.now())

	result, err := a.client.Upload.Upload(ctx, reader, uploader.UploadParams{
		Folder:         a.folder,
		PublicID:       publicID,
		ResourceType:   "raw",
		Overwrite:      api.Bool(false),
		UniqueFilename: api.Bool(false),
		Tags:           []string{"evaluation-report"},
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload report: %w", err)
	}
	if result.Error.Message != "" {
		return "", fmt.Errorf("failed to upload report: %s", result.Error.Message)
	}

	a.logger.Info().Str("public_id", result.PublicID).Int("bytes", result.Bytes).Msg("report archived")
	return result.SecureURL, nil
}

// buildPublicID keeps the extension because raw assets are served under their public id.
func buildPublicID(name string, at time.Time) string {
	ext := strings.ToLower(path.Ext(name))
	if ext == "" {
		ext = ".txt"
	}
	base := strings.TrimSuffix(path.Base(strings.ReplaceAll(name, "\\", "/")), path.Ext(name))
	base = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' {
			return r
		}
		return '-'
	}, base)

	base = strings.Trim(base, "-")
	if base == "" {
		base = "report"
	}

	return fmt.Sprintf("%s-%d%s", base, at.Unix(), ext)
}
