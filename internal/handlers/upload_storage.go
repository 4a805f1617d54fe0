package handlers

import (
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"os"
	"path"
	"path/filepath"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	maxUploadSize = 5 << 20
	uploadsPrefix = "uploads/"
)

var allowedUploadExtensions = map[string]struct{}{
	".jpg":  {},
	".jpeg": {},
	".png":  {},
	".pdf":  {},
}

// UploadStore writes files under Root and hands back "uploads/<subdir>/<name>" paths,
// which the router serves statically from /uploads.
type UploadStore struct {
	Root string
}

func validateUpload(file *multipart.FileHeader) (string, error) {
	extension := strings.ToLower(filepath.Ext(file.Filename))
	if extension == "" {
		return "", fmt.Errorf("file extension is required")
	}
	if _, ok := allowedUploadExtensions[extension]; !ok {
		return "", fmt.Errorf("unsupported file type: %s", extension)
	}
	if file.Size > maxUploadSize {
		return "", fmt.Errorf("file %s too large (max 5MB)", file.Filename)
	}
	return extension, nil
}

func (s UploadStore) save(subdir string, file *multipart.FileHeader) (string, error) {
	extension, err := validateUpload(file)
	if err != nil {
		return "", err
	}

	filename := primitive.NewObjectID().Hex() + extension
	dir := filepath.Join(s.Root, subdir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		log.Printf("[UPLOAD] save: failed to create directory %s: %v", dir, err)
		return "", err
	}

	fullPath := filepath.Join(dir, filename)
	out, err := os.Create(fullPath)
	if err != nil {
		log.Printf("[UPLOAD] save: failed to create file %s: %v", fullPath, err)
		return "", err
	}
	defer out.Close()

	in, err := file.Open()
	if err != nil {
		log.Printf("[UPLOAD] save: failed to open upload %s: %v", file.Filename, err)
		return "", err
	}
	defer in.Close()

	if _, err := io.Copy(out, in); err != nil {
		log.Printf("[UPLOAD] save: failed to write file %s: %v", fullPath, err)
		return "", err
	}

	return path.Join("uploads", subdir, filename), nil
}

// delete removes a previously saved upload. Paths outside Root are refused.
func (s UploadStore) delete(relPath string) error {
	trimmed := strings.TrimSpace(relPath)
	if trimmed == "" {
		return nil
	}

	cleanRel := path.Clean("/" + strings.TrimPrefix(trimmed, "/"))
	cleanRel = strings.TrimPrefix(cleanRel, "/")

	if !strings.HasPrefix(cleanRel, uploadsPrefix) {
		return fmt.Errorf("refusing to delete non-upload path: %s", relPath)
	}

	cleanBase := filepath.Clean(s.Root)
	targetPath := filepath.Join(cleanBase, filepath.FromSlash(strings.TrimPrefix(cleanRel, uploadsPrefix)))
	cleanTarget := filepath.Clean(targetPath)
	if cleanTarget == cleanBase || !strings.HasPrefix(cleanTarget, cleanBase+string(os.PathSeparator)) {
		return fmt.Errorf("refusing to delete path outside upload root: %s", relPath)
	}

	if err := os.Remove(cleanTarget); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	return nil
}

func (s UploadStore) deleteAll(paths []string) {
	for _, p := range paths {
		if err := s.delete(p); err != nil {
			log.Printf("[UPLOAD] cleanup of %s failed: %v", p, err)
		}
	}
}
