package drive

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
)

// Downloader fetches exported files by Drive file ID.
type Downloader interface {
	FileName(ctx context.Context, fileID string) (string, error)
	DownloadFile(ctx context.Context, fileID string, w io.Writer) error
}

type Service struct {
	srv *drive.Service
}

func NewService(ctx context.Context, credentialsJSON string) (*Service, error) {
	// Parse credentials from JSON
	config, err := google.JWTConfigFromJSON(
		[]byte(credentialsJSON),
		drive.DriveReadonlyScope,
	)
	if err != nil {
		return nil, fmt.Errorf("unable to parse drive credentials: %w", err)
	}

	srv, err := drive.NewService(ctx, option.WithHTTPClient(config.Client(ctx)))
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve Drive client: %w", err)
	}

	return &Service{srv: srv}, nil
}

func (s *Service) FileName(ctx context.Context, fileID string) (string, error) {
	f, err := s.srv.Files.Get(fileID).Fields("id, name").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("unable to stat file %s: %w", fileID, err)
	}
	return f.Name, nil
}

func (s *Service) DownloadFile(ctx context.Context, fileID string, w io.Writer) error {
	resp, err := s.srv.Files.Get(fileID).Context(ctx).Download()
	if err != nil {
		return fmt.Errorf("unable to download file %s: %w", fileID, err)
	}
	defer resp.Body.Close()

	_, err = io.Copy(w, resp.Body)
	return err
}

// FetchExport downloads fileID into dir under its Drive name and returns the
// local path. The extension is preserved so the loader can pick CSV or XLSX.
func FetchExport(ctx context.Context, d Downloader, fileID, dir string) (string, error) {
	if dir == "" {
		return "", fmt.Errorf("download dir is required")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create download dir: %w", err)
	}

	name, err := d.FileName(ctx, fileID)
	if err != nil {
		return "", err
	}
	if name == "" {
		name = fileID
	}
	localPath := filepath.Join(dir, filepath.Base(name))

	out, err := os.Create(localPath)
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", localPath, err)
	}
	defer out.Close()

	if err := d.DownloadFile(ctx, fileID, out); err != nil {
		_ = os.Remove(localPath)
		return "", err
	}
	return localPath, nil
}
