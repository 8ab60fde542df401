package service

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	appErrors "github.com/lakewatch/lakes-portal-api/pkg/errors"
)

// fileStore is the slice of the storage backend the services need.
type fileStore interface {
	SaveStream(filename string, r io.Reader) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
}

// checkUpload validates the size and sniffed content type of an uploaded file
// against an allow list.
func checkUpload(header *multipart.FileHeader, allowedMIMEs []string, maxBytes int64) error {
	if header == nil {
		return appErrors.Clone(appErrors.ErrFileRequired, "a file attachment is required")
	}
	if maxBytes > 0 && header.Size > maxBytes {
		return appErrors.Clone(appErrors.ErrFileTooLarge, fmt.Sprintf("file exceeds the %d byte limit", maxBytes))
	}

	file, err := header.Open()
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "failed to read uploaded file")
	}
	defer file.Close() //nolint:errcheck

	buf := make([]byte, 512)
	n, err := file.Read(buf)
	if err != nil && err != io.EOF {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "failed to sniff uploaded file")
	}

	detected := http.DetectContentType(buf[:n])
	for _, allowed := range allowedMIMEs {
		if strings.HasPrefix(detected, allowed) {
			return nil
		}
	}
	return appErrors.Clone(appErrors.ErrUnsupportedMedia, fmt.Sprintf("file type %s is not accepted", detected))
}

// storeUpload writes the uploaded file under <resource>/<recordID>/<name> and
// returns the stored relative path.
func storeUpload(store fileStore, resource, recordID string, header *multipart.FileHeader) (string, error) {
	file, err := header.Open()
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open uploaded file")
	}
	defer file.Close() //nolint:errcheck

	name := filepath.Base(header.Filename)
	if name == "" || name == "." || name == string(filepath.Separator) {
		name = "upload"
	}
	target := filepath.Join(resource, recordID, name)
	stored, err := store.SaveStream(target, file)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store uploaded file")
	}
	return stored, nil
}
