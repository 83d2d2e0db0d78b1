// Package objectstore names and reads the uploads AlumniHub keeps in a
// waffle storage.Store: avatars and chat attachments.
package objectstore

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// AvatarKey returns avatars/<uid>_<unix-ms>-<name>.
func AvatarKey(uidHex, filename string, now time.Time) string {
	return fmt.Sprintf("avatars/%s_%d-%s", uidHex, now.UnixMilli(), SanitizeFilename(filename))
}

// AttachmentKey returns messages/<room>/YYYY/MM/<uuid8>-<name>.
func AttachmentKey(room, filename string, now time.Time) string {
	now = now.UTC()
	return fmt.Sprintf("messages/%s/%04d/%02d/%s-%s",
		SanitizeFilename(room), now.Year(), now.Month(), uuid.NewString()[:8], SanitizeFilename(filename))
}

// SanitizeFilename keeps [A-Za-z0-9._-], replaces everything else with '_'
// and caps the length at 100 while keeping a short extension.
func SanitizeFilename(filename string) string {
	filename = filepath.Base(strings.ReplaceAll(filename, "\\", "/"))

	result := make([]byte, 0, len(filename))
	for i := 0; i < len(filename); i++ {
		c := filename[i]
		if isAllowedFilenameChar(c) {
			result = append(result, c)
		} else {
			result = append(result, '_')
		}
	}
	s := strings.TrimLeft(string(result), ".")
	if s == "" {
		return "file"
	}
	if len(s) > 100 {
		ext := filepath.Ext(s)
		if len(ext) > 0 && len(ext) < 10 {
			s = s[:100-len(ext)] + ext
		} else {
			s = s[:100]
		}
	}
	return s
}

func isAllowedFilenameChar(c byte) bool {
	return (c >= 'a' && c <= 'z') ||
		(c >= 'A' && c <= 'Z') ||
		(c >= '0' && c <= '9') ||
		c == '-' || c == '_' || c == '.'
}
