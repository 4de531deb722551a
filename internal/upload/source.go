package upload

import (
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// Open builds a File from a path on disk. The declared media type is derived
// from the extension, the way a browser fills File.type. At most MaxSize+1
// bytes are read so an oversize file is never loaded whole; Size always
// reports the real size from stat.
func Open(path string) (File, error) {
	info, err := os.Stat(path)
	if err != nil {
		return File{}, fmt.Errorf("failed to stat image: %w", err)
	}
	if info.IsDir() {
		return File{}, fmt.Errorf("not a file: %s", path)
	}

	f, err := os.Open(path)
	if err != nil {
		return File{}, fmt.Errorf("failed to open image: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			slog.Error("failed to close image file", "path", path, "error", cerr)
		}
	}()

	return read(filepath.Base(path), extToMediaType(path), info.Size(), f)
}

// FromMultipart builds a File from an uploaded form part. The declared
// Content-Type header wins; the extension is the fallback.
func FromMultipart(fh *multipart.FileHeader) (File, error) {
	mediaType := strings.ToLower(strings.TrimSpace(fh.Header.Get("Content-Type")))
	switch mediaType {
	case "", "application/octet-stream":
		mediaType = extToMediaType(fh.Filename)
	case "image/heif":
		// Same container; the backend only knows the HEIC name.
		mediaType = MediaHEIC
	}

	f, err := fh.Open()
	if err != nil {
		return File{}, fmt.Errorf("failed to open upload: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			slog.Error("failed to close upload", "name", fh.Filename, "error", cerr)
		}
	}()

	return read(filepath.Base(fh.Filename), mediaType, fh.Size, f)
}

func read(name, mediaType string, size int64, r io.Reader) (File, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxSize+1))
	if err != nil {
		return File{}, fmt.Errorf("failed to read image: %w", err)
	}
	if size < int64(len(data)) {
		size = int64(len(data))
	}
	if mediaType == "application/octet-stream" {
		mediaType = sniffMediaType(data)
	}
	return File{Name: name, MediaType: mediaType, Size: size, Data: data}, nil
}

func extToMediaType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return MediaJPEG
	case ".png":
		return MediaPNG
	case ".heic", ".heif":
		return MediaHEIC
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	default:
		return "application/octet-stream"
	}
}

// sniffMediaType guesses the type from magic bytes when neither header nor
// extension declared one. net/http.DetectContentType has no HEIC signature,
// so the ISO-BMFF brand is checked first.
func sniffMediaType(data []byte) string {
	if isHEIC(data) {
		return MediaHEIC
	}
	return http.DetectContentType(data)
}

// isHEIC reports whether data starts an ISO-BMFF "ftyp" box with a HEIF brand.
func isHEIC(data []byte) bool {
	if len(data) < 12 || string(data[4:8]) != "ftyp" {
		return false
	}
	switch string(data[8:12]) {
	case "heic", "heix", "hevc", "heim", "heis", "mif1", "msf1":
		return true
	}
	return false
}
