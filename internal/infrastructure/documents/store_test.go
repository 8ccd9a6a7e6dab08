package documents

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/E-ugine/kyc-verification-backend/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.Set(1, 1, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func jpegBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	return buf.Bytes()
}

func newStore(t *testing.T) *FileStore {
	t.Helper()
	s, err := NewFileStore(t.TempDir(), DefaultMaxBytes)
	require.NoError(t, err)
	return s
}

func TestNewFileStore_CreatesBuckets(t *testing.T) {
	s := newStore(t)
	for _, b := range []string{"selfies", "id_docs"} {
		info, err := os.Stat(filepath.Join(s.Root(), b))
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}
}

func TestValidate_AcceptsImagesAndPDF(t *testing.T) {
	s := newStore(t)

	doc, err := s.Validate("selfie", domain.Upload{Filename: "me.PNG", Content: bytes.NewReader(pngBytes(t))})
	require.NoError(t, err)
	assert.Equal(t, ".png", doc.Ext)
	assert.Equal(t, "image/png", doc.ContentType)

	doc, err = s.Validate("selfie", domain.Upload{Filename: "me.jpeg", Content: bytes.NewReader(jpegBytes(t))})
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", doc.ContentType)

	pdf := []byte("%PDF-1.4\n1 0 obj\n<< /Type /Catalog >>\nendobj\ntrailer\n<< /Root 1 0 R >>\n%%EOF\n")
	doc, err = s.Validate("id_doc", domain.Upload{Filename: "passport.pdf", Content: bytes.NewReader(pdf)})
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", doc.ContentType)
}

func TestValidate_RejectsOversizedJPEG(t *testing.T) {
	s := newStore(t)
	data := append(jpegBytes(t), bytes.Repeat([]byte{0}, 8<<20)...)

	_, err := s.Validate("selfie", domain.Upload{Filename: "big.jpg", Content: bytes.NewReader(data)})
	var upErr *domain.UploadError
	require.ErrorAs(t, err, &upErr)
	assert.ErrorIs(t, err, domain.ErrUpload)
	assert.Contains(t, upErr.Reason, "too large")
}

func TestValidate_RejectsRenamedTextFile(t *testing.T) {
	s := newStore(t)

	_, err := s.Validate("selfie", domain.Upload{Filename: "notes.jpg", Content: strings.NewReader("just some text, not an image")})
	var upErr *domain.UploadError
	require.ErrorAs(t, err, &upErr)
	assert.Equal(t, "invalid image file", upErr.Reason)
	assert.Equal(t, "selfie", upErr.Field)
}

func TestValidate_RejectsCorruptPNG(t *testing.T) {
	s := newStore(t)
	data := pngBytes(t)

	_, err := s.Validate("selfie", domain.Upload{Filename: "cut.png", Content: bytes.NewReader(data[:len(data)/2])})
	assert.ErrorIs(t, err, domain.ErrUpload)
}

func TestValidate_RejectsDisallowedExtension(t *testing.T) {
	s := newStore(t)

	_, err := s.Validate("id_doc", domain.Upload{Filename: "scan.gif", Content: strings.NewReader("GIF89a")})
	var upErr *domain.UploadError
	require.ErrorAs(t, err, &upErr)
	assert.Contains(t, upErr.Reason, "not allowed")
}

func TestSaveAndDelete(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	doc, err := s.Validate("selfie", domain.Upload{Filename: "me.png", Content: bytes.NewReader(pngBytes(t))})
	require.NoError(t, err)

	ref, err := s.Save(ctx, domain.BucketSelfies, doc)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(ref, "selfies/"))
	assert.True(t, strings.HasSuffix(ref, ".png"))

	stored, err := os.ReadFile(filepath.Join(s.Root(), filepath.FromSlash(ref)))
	require.NoError(t, err)
	assert.Equal(t, doc.Data, stored)

	require.NoError(t, s.Delete(ctx, ref))
	_, err = os.Stat(filepath.Join(s.Root(), filepath.FromSlash(ref)))
	assert.True(t, os.IsNotExist(err))

	require.NoError(t, s.Delete(ctx, ref))
	assert.Error(t, s.Delete(ctx, "../etc/passwd"))
	assert.Error(t, s.Delete(ctx, "selfies/../../x"))
}
