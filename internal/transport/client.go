package transport

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strconv"

	"go.uber.org/zap"

	"github.com/devans0/fileshare-client/internal/logging"
	"github.com/devans0/fileshare-client/internal/metrics"
)

// Fetch downloads one file from a peer into destDir (created if absent) and
// returns the local path. A non-positive size header means the peer could
// not provide the file and aborts the download. A byte-count mismatch after
// the stream ends is reported as a warning, not a failure: the partial file
// is left in place for the caller to inspect.
func Fetch(ctx context.Context, address string, port int, name, destDir string) (string, error) {
	if !ValidName(name) {
		return "", fmt.Errorf("%w: %q", ErrBadName, name)
	}
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", fmt.Errorf("creating download directory: %w", err)
	}

	target := net.JoinHostPort(address, strconv.Itoa(port))
	logging.Info("requesting file from peer", zap.String("name", name), zap.String("peer", target))

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", target)
	if err != nil {
		return "", fmt.Errorf("connecting to peer %s: %w", target, err)
	}
	defer conn.Close()

	if err := WriteRequest(conn, name); err != nil {
		return "", fmt.Errorf("sending request: %w", err)
	}

	size, err := ReadSize(conn)
	if err != nil {
		return "", err
	}
	if size <= 0 {
		return "", fmt.Errorf("peer could not provide %s", name)
	}
	logging.Info("peer reported file size", zap.String("name", name), zap.Int64("size", size))

	dest := filepath.Join(destDir, filepath.Base(name))
	f, err := os.Create(dest)
	if err != nil {
		return "", fmt.Errorf("creating %s: %w", dest, err)
	}

	n, copyErr := io.Copy(f, io.LimitReader(conn, size))
	closeErr := f.Close()
	metrics.AddTransferBytes("received", n)

	if copyErr != nil {
		return dest, fmt.Errorf("receiving %s after %d bytes: %w", name, n, copyErr)
	}
	if closeErr != nil {
		return dest, fmt.Errorf("writing %s: %w", dest, closeErr)
	}
	if n != size {
		logging.Warn("transfer size mismatch",
			zap.String("name", name),
			zap.Int64("expected", size),
			zap.Int64("received", n),
			zap.String("path", dest))
		return dest, nil
	}

	logging.Info("transfer complete", zap.String("name", name), zap.String("path", dest))
	return dest, nil
}
