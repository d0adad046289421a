package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/rs/zerolog"
)

// CloudinaryConfig contains credentials required to talk to Cloudinary.
type CloudinaryConfig struct {
	CloudName string
	APIKey    string
	APISecret string
	Folder    string
}

// CloudinaryStore implements FileStore against Cloudinary. Save uploads the
// payload as a raw asset and returns its secure delivery URL as the storage
// key; Read fetches that URL back.
type CloudinaryStore struct {
	client *cloudinary.Cloudinary
	folder string
	http   *http.Client
	logger zerolog.Logger
}

// NewCloudinaryStore constructs a Cloudinary-backed store.
func NewCloudinaryStore(cfg CloudinaryConfig, logger zerolog.Logger) (*CloudinaryStore, error) {
	if cfg.CloudName == "" || cfg.APIKey == "" || cfg.APISecret == "" {
		return nil, fmt.Errorf("cloudinary credentials must be provided")
	}

	cld, err := cloudinary.NewFromParams(cfg.CloudName, cfg.APIKey, cfg.APISecret)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cloudinary: %w", err)
	}

	return &CloudinaryStore{
		client: cld,
		folder: strings.Trim(cfg.Folder, "/"),
		http:   &http.Client{Timeout: 30 * time.Second},
		logger: logger.With().Str("component", "cloudinary_store").Logger(),
	}, nil
}

// Save uploads the payload and returns the secure URL as the storage key.
func (s *CloudinaryStore) Save(ctx context.Context, key string, reader io.Reader) (string, error) {
	params := uploader.UploadParams{
		Folder:       s.folder,
		PublicID:     publicIDFromKey(key),
		ResourceType: "raw",
	}

	result, err := s.client.Upload.Upload(ctx, reader, params)
	if err != nil {
		return "", fmt.Errorf("failed to upload asset: %w", err)
	}

	s.logger.Info().Str("public_id", result.PublicID).Msg("submission uploaded to cloudinary")

	return result.SecureURL, nil
}

// Read downloads the stored bytes from the delivery URL.
func (s *CloudinaryStore) Read(ctx context.Context, storageKey string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, storageKey, nil)
	if err != nil {
		return nil, fmt.Errorf("build asset request: %w", err)
	}

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch asset: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch asset: unexpected status %d", resp.StatusCode)
	}

	return io.ReadAll(resp.Body)
}

// Delete destroys the asset behind the delivery URL.
func (s *CloudinaryStore) Delete(ctx context.Context, storageKey string) error {
	publicID, err := s.publicIDFromURL(storageKey)
	if err != nil {
		return err
	}

	_, err = s.client.Upload.Destroy(ctx, uploader.DestroyParams{
		PublicID:     publicID,
		ResourceType: "raw",
	})
	if err != nil {
		return fmt.Errorf("failed to destroy asset: %w", err)
	}

	return nil
}

// publicIDFromKey flattens the hierarchical storage key into a Cloudinary
// public id. Raw assets keep their extension as part of the id.
func publicIDFromKey(key string) string {
	return strings.ReplaceAll(strings.Trim(key, "/"), "/", "-")
}

// publicIDFromURL recovers the public id from a raw delivery URL of the form
// https://res.cloudinary.com/<cloud>/raw/upload/v<ver>/<folder>/<id>.
func (s *CloudinaryStore) publicIDFromURL(storageKey string) (string, error) {
	parsed, err := url.Parse(storageKey)
	if err != nil {
		return "", fmt.Errorf("parse storage key: %w", err)
	}

	segments := strings.Split(strings.Trim(parsed.Path, "/"), "/")
	for i, segment := range segments {
		if segment == "upload" && i+1 < len(segments) {
			rest := segments[i+1:]
			if len(rest) > 0 && strings.HasPrefix(rest[0], "v") {
				rest = rest[1:]
			}
			if len(rest) > 0 {
				return path.Join(rest...), nil
			}
		}
	}

	return "", fmt.Errorf("unrecognized cloudinary url: %s", storageKey)
}
