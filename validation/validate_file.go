package validation

import (
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/webp"
)

// supportedReferenceMIMEs are the media types the video endpoint accepts as
// an input reference.
var supportedReferenceMIMEs = []string{
	"image/jpeg",
	"image/png",
	"image/webp",
	"video/mp4",
}

// referenceMIMECandidates canonicalizes the aliases sniffing and extension
// lookup can produce.
var referenceMIMECandidates = map[string]string{
	"image/jpeg":  "image/jpeg",
	"image/jpg":   "image/jpeg",
	"image/pjpeg": "image/jpeg",
	"image/png":   "image/png",
	"image/x-png": "image/png",
	"image/webp":  "image/webp",
	"video/mp4":   "video/mp4",
}

// FileError indicates a local file failed an acceptance check.
type FileError struct {
	Path    string
	Message string
}

func (e *FileError) Error() string {
	return e.Message
}

// CheckFileExists checks if a regular file exists at the given path.
//
// Returns nil if the file exists, or a *FileError describing the failure.
func CheckFileExists(path string) error {
	if path == "" {
		return &FileError{Path: path, Message: "file path cannot be empty"}
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &FileError{Path: path, Message: fmt.Sprintf("file not found: %s", path)}
		}
		return &FileError{Path: path, Message: fmt.Sprintf("error checking file %s: %v", path, err)}
	}

	if info.IsDir() {
		return &FileError{Path: path, Message: fmt.Sprintf("path is a directory, not a file: %s", path)}
	}

	return nil
}

// DetectReferenceMIME sniffs the media type of a reference file and
// canonicalizes it to one of the supported types.
//
// Sniffing order: the first 512 bytes via http.DetectContentType, then the
// file extension as a fallback. A webp match is additionally decoded
// (header only) to confirm the container is intact, since DetectContentType
// accepts any RIFF prefix.
//
// Returns the canonical MIME type, or a *FileError when the file is not a
// supported reference type.
func DetectReferenceMIME(path string) (string, error) {
	if err := CheckFileExists(path); err != nil {
		return "", err
	}

	file, err := os.Open(path)
	if err != nil {
		return "", &FileError{Path: path, Message: fmt.Sprintf("cannot open reference file: %v", err)}
	}
	defer file.Close()

	buf := make([]byte, 512)
	n, err := file.Read(buf)
	if err != nil && err != io.EOF {
		return "", &FileError{Path: path, Message: fmt.Sprintf("cannot read reference file: %v", err)}
	}

	mimeType := ""
	if n > 0 {
		if canonical, ok := canonicalizeReferenceMIME(http.DetectContentType(buf[:n])); ok {
			mimeType = canonical
		}
	}

	if mimeType == "" {
		ext := strings.ToLower(filepath.Ext(path))
		if ext != "" {
			if byExt := mime.TypeByExtension(ext); byExt != "" {
				if canonical, ok := canonicalizeReferenceMIME(byExt); ok {
					mimeType = canonical
				}
			}
		}
	}

	if mimeType == "" {
		return "", &FileError{
			Path: path,
			Message: fmt.Sprintf("unsupported reference file type; supported types: %s",
				strings.Join(supportedReferenceMIMEs, ", ")),
		}
	}

	if mimeType == "image/webp" {
		if _, err := file.Seek(0, io.SeekStart); err != nil {
			return "", &FileError{Path: path, Message: fmt.Sprintf("cannot rewind reference file: %v", err)}
		}
		if _, err := webp.DecodeConfig(file); err != nil {
			return "", &FileError{Path: path, Message: fmt.Sprintf("invalid webp reference file: %v", err)}
		}
	}

	return mimeType, nil
}

// canonicalizeReferenceMIME lowercases, strips parameters, and maps aliases
// onto the supported set.
func canonicalizeReferenceMIME(mimeType string) (string, bool) {
	mimeType = strings.TrimSpace(strings.ToLower(mimeType))
	if mimeType == "" {
		return "", false
	}
	if idx := strings.Index(mimeType, ";"); idx != -1 {
		mimeType = mimeType[:idx]
	}
	canonical, ok := referenceMIMECandidates[mimeType]
	return canonical, ok
}
