package documents

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/E-ugine/kyc-verification-backend/internal/domain"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

const DefaultMaxBytes int64 = 5 << 20

var allowedTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".pdf":  "application/pdf",
}

// FileStore keeps documents on local disk, one directory per bucket.
// References are slash-separated paths relative to the root.
type FileStore struct {
	root     string
	maxBytes int64
}

func NewFileStore(root string, maxBytes int64) (*FileStore, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	for _, bucket := range []domain.Bucket{domain.BucketSelfies, domain.BucketIDDocs} {
		if err := os.MkdirAll(filepath.Join(root, string(bucket)), 0o750); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", bucket, err)
		}
	}
	return &FileStore{root: root, maxBytes: maxBytes}, nil
}

func (s *FileStore) Root() string { return s.root }

// Validate reads the upload into memory and checks extension, size, sniffed
// content type and, for images, that the whole image decodes.
func (s *FileStore) Validate(field string, upload domain.Upload) (domain.Document, error) {
	if upload.Filename == "" || upload.Content == nil {
		return domain.Document{}, &domain.UploadError{Field: field, Reason: "missing file"}
	}
	ext := strings.ToLower(filepath.Ext(upload.Filename))
	want, ok := allowedTypes[ext]
	if !ok {
		return domain.Document{}, &domain.UploadError{Field: field, Reason: fmt.Sprintf("file type %q not allowed, allowed types: .jpg, .jpeg, .png, .pdf", ext)}
	}

	data, err := io.ReadAll(io.LimitReader(upload.Content, s.maxBytes+1))
	if err != nil {
		return domain.Document{}, &domain.UploadError{Field: field, Reason: "could not read file"}
	}
	if int64(len(data)) > s.maxBytes {
		return domain.Document{}, &domain.UploadError{Field: field, Reason: fmt.Sprintf("file too large, maximum size is %dMB", s.maxBytes>>20)}
	}

	detected := mimetype.Detect(data)
	if !detected.Is(want) {
		if want == "application/pdf" {
			return domain.Document{}, &domain.UploadError{Field: field, Reason: "invalid pdf file"}
		}
		return domain.Document{}, &domain.UploadError{Field: field, Reason: "invalid image file"}
	}
	if want != "application/pdf" {
		if _, _, err := image.Decode(bytes.NewReader(data)); err != nil {
			return domain.Document{}, &domain.UploadError{Field: field, Reason: "invalid image file"}
		}
	}
	return domain.Document{Ext: ext, ContentType: want, Data: data}, nil
}

func (s *FileStore) Save(_ context.Context, bucket domain.Bucket, doc domain.Document) (string, error) {
	if bucket != domain.BucketSelfies && bucket != domain.BucketIDDocs {
		return "", fmt.Errorf("unknown bucket %q", bucket)
	}
	ref := path.Join(string(bucket), uuid.NewString()+doc.Ext)
	if err := os.WriteFile(filepath.Join(s.root, filepath.FromSlash(ref)), doc.Data, 0o640); err != nil {
		return "", fmt.Errorf("write document: %w", err)
	}
	return ref, nil
}

// Delete removes a stored document. Missing files are not an error.
func (s *FileStore) Delete(_ context.Context, ref string) error {
	p, err := s.resolve(ref)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove document: %w", err)
	}
	return nil
}

// Path maps a stored reference to its file, refusing anything outside the
// known buckets.
func (s *FileStore) Path(ref string) (string, error) {
	return s.resolve(ref)
}

func (s *FileStore) resolve(ref string) (string, error) {
	clean := path.Clean(ref)
	bucket, _, ok := strings.Cut(clean, "/")
	if !ok || strings.Contains(clean, "..") || (bucket != string(domain.BucketSelfies) && bucket != string(domain.BucketIDDocs)) {
		return "", fmt.Errorf("invalid document reference %q", ref)
	}
	return filepath.Join(s.root, filepath.FromSlash(clean)), nil
}
