// Package identity provides a persistent peer ID for registry ownership.
package identity

import (
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/devans0/fileshare-client/internal/logging"
)

// maxAge is how long a cached peer ID stays valid. A stale ID file is
// replaced with a fresh UUID so an abandoned identity cannot be reused
// indefinitely, while a briefly disconnected client keeps its listings.
const maxAge = 24 * time.Hour

// LoadOrCreate returns the peer ID cached in path, generating and storing a
// fresh UUID when the file is missing, empty, stale, or corrupt. Persistence
// is best effort: on I/O failure a usable in-memory ID is still returned.
func LoadOrCreate(path string) string {
	if id, ok := load(path); ok {
		return id
	}

	id := uuid.New().String()
	if err := os.WriteFile(path, []byte(id), 0o600); err != nil {
		logging.Warn("could not persist peer ID, using ephemeral identity",
			zap.String("path", path), zap.Error(err))
	}
	return id
}

func load(path string) (string, bool) {
	fi, err := os.Stat(path)
	if err != nil {
		return "", false
	}
	if fi.Size() == 0 || time.Since(fi.ModTime()) > maxAge {
		return "", false
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		logging.Warn("could not read peer ID file", zap.String("path", path), zap.Error(err))
		return "", false
	}
	id := strings.TrimSpace(string(raw))
	if _, err := uuid.Parse(id); err != nil {
		logging.Warn("peer ID file is corrupt, regenerating", zap.String("path", path))
		return "", false
	}

	// Touch the file so an active client keeps its identity across restarts.
	now := time.Now()
	_ = os.Chtimes(path, now, now)
	return id, true
}
