// Package mojang provides a client for the Minecraft launcher metadata API:
// the version manifest, per-version metadata and server jar downloads.
package mojang

import (
	"context"
	"crypto/sha1" //nolint:gosec
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/bytedance/sonic"

	"github.com/sund3RRR/mcctl/config"
)

// DefaultManifestURL is the launcher's public version manifest.
const DefaultManifestURL = "https://launchermeta.mojang.com/mc/game/version_manifest.json"

// Client is a client for the launcher metadata API.
type Client struct {
	manifestURL string
	client      *http.Client
}

// New creates a new launcher API client using the provided configuration.
func New(cfg config.DownloadConfig) *Client {
	manifestURL := cfg.ManifestURL
	if manifestURL == "" {
		manifestURL = DefaultManifestURL
	}
	return &Client{
		manifestURL: manifestURL,
		client:      &http.Client{Timeout: cfg.Timeout},
	}
}

// Manifest fetches the version manifest. Versions are sorted newest first by release time.
func (c *Client) Manifest(ctx context.Context) (*VersionManifest, error) {
	var manifest VersionManifest
	if err := c.getJSON(ctx, c.manifestURL, &manifest); err != nil {
		return nil, err
	}

	slices.SortStableFunc(manifest.Versions, func(a, b VersionInfo) int {
		return b.ReleaseTime.Compare(a.ReleaseTime)
	})

	return &manifest, nil
}

// Find returns the version with the given name.
func (m *VersionManifest) Find(name string) (VersionInfo, error) {
	for _, v := range m.Versions {
		if v.ID == name {
			return v, nil
		}
	}
	return VersionInfo{}, fmt.Errorf("%w: %s", ErrVersionNotFound, name)
}

// LatestRelease returns the newest release.
func (m *VersionManifest) LatestRelease() (VersionInfo, error) {
	return m.Find(m.Latest.Release)
}

// LatestSnapshot returns the newest snapshot.
func (m *VersionManifest) LatestSnapshot() (VersionInfo, error) {
	return m.Find(m.Latest.Snapshot)
}

// ServerDownload fetches the version metadata and returns its server artifact.
func (c *Client) ServerDownload(ctx context.Context, version VersionInfo) (Download, error) {
	var meta versionMetadata
	if err := c.getJSON(ctx, version.URL, &meta); err != nil {
		return Download{}, err
	}
	if meta.Downloads.Server == nil || meta.Downloads.Server.URL == "" {
		return Download{}, fmt.Errorf("%w: %s", ErrNoServerDownload, version.ID)
	}
	return *meta.Downloads.Server, nil
}

// ServerURL returns the download location of the version's server jar.
func (c *Client) ServerURL(ctx context.Context, version VersionInfo) (string, error) {
	download, err := c.ServerDownload(ctx, version)
	if err != nil {
		return "", err
	}
	return download.URL, nil
}

// DownloadServer downloads the version's server jar to dest and verifies its digest.
func (c *Client) DownloadServer(ctx context.Context, version VersionInfo, dest string) (int64, error) {
	download, err := c.ServerDownload(ctx, version)
	if err != nil {
		return 0, err
	}

	n, digest, err := c.fetch(ctx, download.URL, dest)
	if err != nil {
		return n, err
	}
	if download.SHA1 != "" && !strings.EqualFold(download.SHA1, digest) {
		os.Remove(dest)
		return n, fmt.Errorf("%w: %s: expected %s, got %s", ErrChecksumMismatch, dest, download.SHA1, digest)
	}

	return n, nil
}

// Download streams the body of url into dest and returns the number of bytes written.
// The file is written next to dest and renamed into place once complete.
func (c *Client) Download(ctx context.Context, url, dest string) (int64, error) {
	n, _, err := c.fetch(ctx, url, dest)
	return n, err
}

func (c *Client) fetch(ctx context.Context, url, dest string) (int64, string, error) {
	response, err := c.get(ctx, url)
	if err != nil {
		return 0, "", err
	}
	defer response.Body.Close()

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return 0, "", fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(dest), filepath.Base(dest)+".*.part")
	if err != nil {
		return 0, "", fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	defer os.Remove(tmp.Name())

	hash := sha1.New() //nolint:gosec
	n, err := io.Copy(io.MultiWriter(tmp, hash), response.Body)
	if err != nil {
		tmp.Close()
		return n, "", fmt.Errorf("%w: %w", ErrFailedToReadBody, err)
	}
	if err := tmp.Close(); err != nil {
		return n, "", fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return n, "", fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}

	return n, hex.EncodeToString(hash.Sum(nil)), nil
}

// getJSON retrieves url and decodes its JSON body into v.
func (c *Client) getJSON(ctx context.Context, url string, v any) error {
	response, err := c.get(ctx, url)
	if err != nil {
		return err
	}
	defer response.Body.Close()

	body, err := io.ReadAll(response.Body)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrFailedToReadBody, err)
	}

	if err := sonic.Unmarshal(body, v); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrFailedToDecode, url, err)
	}

	return nil
}

// get sends a GET request and rejects non-2xx answers. The caller closes the body.
func (c *Client) get(ctx context.Context, url string) (*http.Response, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrHTTPRequestFailed, err)
	}

	response, err := c.client.Do(request)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrHTTPRequestFailed, err)
	}
	if response.StatusCode < 200 || response.StatusCode > 299 {
		response.Body.Close()
		return nil, fmt.Errorf("%w: GET %s: %s", ErrUnexpectedStatus, url, response.Status)
	}

	return response, nil
}
