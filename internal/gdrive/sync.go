package gdrive

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
)

// files is the slice of the Drive API the syncer needs.
type files interface {
	create(name, folderID string, media io.Reader) (string, error)
	update(fileID string, media io.Reader) error
}

type driveFiles struct {
	service *drive.Service
}

func (d driveFiles) create(name, folderID string, media io.Reader) (string, error) {
	doc, err := d.service.Files.Create(&drive.File{
		Name:     name,
		MimeType: "application/vnd.google-apps.document",
		Parents:  []string{folderID},
	}).Media(media).Do()
	if err != nil {
		return "", err
	}
	return doc.Id, nil
}

func (d driveFiles) update(fileID string, media io.Reader) error {
	_, err := d.service.Files.Update(fileID, &drive.File{}).Media(media).Do()
	return err
}

// Syncer uploads the daily report journal as a Google Doc, creating the
// document on the first sync of a day and replacing its content afterwards.
type Syncer struct {
	files    files
	folderID string
	fileIDs  map[string]string
	mu       sync.Mutex
}

func NewSyncer(ctx context.Context, credPath, folderID string) (*Syncer, error) {
	creds, err := os.ReadFile(credPath)
	if err != nil {
		return nil, fmt.Errorf("read credentials: %w", err)
	}

	config, err := google.CredentialsFromJSONWithTypeAndParams(ctx, creds, google.ServiceAccount, google.CredentialsParams{Scopes: []string{drive.DriveFileScope}})
	if err != nil {
		return nil, fmt.Errorf("parse credentials: %w", err)
	}

	svc, err := drive.NewService(ctx, option.WithCredentials(config))
	if err != nil {
		return nil, fmt.Errorf("create drive service: %w", err)
	}

	return newSyncer(driveFiles{service: svc}, folderID), nil
}

func newSyncer(f files, folderID string) *Syncer {
	return &Syncer{
		files:    f,
		folderID: folderID,
		fileIDs:  make(map[string]string),
	}
}

func (s *Syncer) Sync(localPath, date string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("open %s: %w", localPath, err)
	}
	defer func() { _ = f.Close() }()

	if fileID, ok := s.fileIDs[date]; ok {
		if err := s.files.update(fileID, f); err != nil {
			return fmt.Errorf("drive update: %w", err)
		}
		return nil
	}

	id, err := s.files.create(fmt.Sprintf("callwatch-reports-%s", date), s.folderID, f)
	if err != nil {
		return fmt.Errorf("drive create: %w", err)
	}

	s.fileIDs[date] = id
	return nil
}
