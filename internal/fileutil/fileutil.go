package fileutil

import (
	"fmt"
	"math"
	"math/rand"
	"os"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"

	"github.com/garyjia/fapiao-client/internal/models"
)

// DefaultMaxFileSizeMB is the upload size gate
const DefaultMaxFileSizeMB = 10

var (
	imageExtensions    = map[string]bool{"jpg": true, "jpeg": true, "png": true}
	documentExtensions = map[string]bool{"pdf": true}
)

// Kind classifies a staged file
type Kind int

const (
	KindOther Kind = iota
	KindImage
	KindDocument
)

// Extension returns the lowercased extension without the dot
func Extension(filename string) string {
	idx := strings.LastIndex(filename, ".")
	if idx < 0 || idx == len(filename)-1 {
		return ""
	}
	return strings.ToLower(filename[idx+1:])
}

// IsAllowedType reports whether the file may be uploaded at all
func IsAllowedType(filename string) bool {
	ext := Extension(filename)
	return imageExtensions[ext] || documentExtensions[ext]
}

// KindOf classifies a filename by extension
func KindOf(filename string) Kind {
	ext := Extension(filename)
	switch {
	case imageExtensions[ext]:
		return KindImage
	case documentExtensions[ext]:
		return KindDocument
	default:
		return KindOther
	}
}

// Stats classifies the staged files into upload statistics. Total counts all
// files, including ones that fail the type gate.
func Stats(filenames []string) models.UploadStats {
	stats := models.UploadStats{Total: len(filenames)}
	for _, name := range filenames {
		switch KindOf(name) {
		case KindImage:
			stats.Images++
		case KindDocument:
			stats.Documents++
		}
	}
	return stats
}

// CheckSize enforces the size gate on a file
func CheckSize(path string, maxSizeMB int) error {
	if maxSizeMB <= 0 {
		maxSizeMB = DefaultMaxFileSizeMB
	}
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", path, err)
	}
	limit := int64(maxSizeMB) * 1024 * 1024
	if info.Size() > limit {
		return fmt.Errorf("文件 %s 超过大小限制 %dMB (实际 %s)", path, maxSizeMB, FormatSize(info.Size()))
	}
	return nil
}

// ValidatePDF opens the file with the PDF parser to confirm it is readable
// before spending a server round-trip on it.
func ValidatePDF(path string) error {
	f, _, err := pdf.Open(path)
	if err != nil {
		return fmt.Errorf("无法读取PDF文件 %s: %w", path, err)
	}
	return f.Close()
}

// FormatSize renders a byte count for humans
func FormatSize(bytes int64) string {
	if bytes == 0 {
		return "0 Bytes"
	}
	units := []string{"Bytes", "KB", "MB", "GB"}
	exp := int(math.Floor(math.Log(float64(bytes)) / math.Log(1024)))
	if exp >= len(units) {
		exp = len(units) - 1
	}
	value := float64(bytes) / math.Pow(1024, float64(exp))
	return fmt.Sprintf("%s %s", strings.TrimSuffix(fmt.Sprintf("%.2f", value), ".00"), units[exp])
}

// UniqueFilename derives a collision-resistant name keeping the extension
func UniqueFilename(original, prefix string) string {
	name := fmt.Sprintf("%d_%09d", time.Now().UnixMilli(), rand.Intn(1_000_000_000))
	if prefix != "" {
		name = prefix + "_" + name
	}
	if ext := Extension(original); ext != "" {
		name += "." + ext
	}
	return name
}
