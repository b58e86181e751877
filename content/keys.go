package content

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/PapsonBoyRaphael/chatapp-ngomna-sub003/interfaces"
)

// MaxFileNameLength caps the sanitized filename portion of a storage key.
const MaxFileNameLength = 100

// GenerateKey builds a deterministic, time-partitioned storage key:
//
//	prefix/year/month/day/timestamp_random_sanitizedName
//
// The millisecond timestamp plus random suffix guarantee that two keys
// generated for the same filename at different instants never collide.
func GenerateKey(prefix, fileName string, now time.Time) interfaces.StorageKey {
	name := SanitizeFileName(fileName)
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]

	key := fmt.Sprintf("%s/%04d/%02d/%02d/%d_%s_%s",
		strings.Trim(prefix, "/"),
		now.Year(), int(now.Month()), now.Day(),
		now.UnixMilli(), suffix, name)

	return interfaces.StorageKey(key)
}

// SanitizeFileName strips path separators, control characters and shell
// metacharacters from a declared filename, preserving the extension when the
// name has to be truncated.
func SanitizeFileName(fileName string) string {
	if fileName == "" {
		return "unnamed"
	}

	// Drop any directory components the client declared.
	if idx := strings.LastIndexAny(fileName, "/\\"); idx >= 0 {
		fileName = fileName[idx+1:]
	}

	var b strings.Builder
	for _, r := range fileName {
		switch {
		case r < 0x20 || r == 0x7f:
			// control characters dropped entirely
		case strings.ContainsRune(`<>:"|?*#%&{}$!'@+=`+"`", r):
			b.WriteRune('_')
		case r == ' ':
			b.WriteRune('_')
		default:
			b.WriteRune(r)
		}
	}

	name := strings.Trim(b.String(), "._")
	if name == "" {
		return "unnamed"
	}

	if len(name) > MaxFileNameLength {
		ext := ""
		if idx := strings.LastIndex(name, "."); idx > 0 && len(name)-idx <= 10 {
			ext = name[idx:]
		}
		name = name[:MaxFileNameLength-len(ext)] + ext
	}

	return name
}
