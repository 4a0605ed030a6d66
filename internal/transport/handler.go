package transport

import (
	"bufio"
	"io"
	"net"
	"os"

	"go.uber.org/zap"

	"github.com/devans0/fileshare-client/internal/logging"
	"github.com/devans0/fileshare-client/internal/metrics"
)

// serveConn handles one accepted peer connection: a single file-name
// request, authorized against the registration table, answered with the size
// header and the file bytes. Refusals get the unavailable sentinel; any
// failure is isolated to this connection.
func serveConn(conn net.Conn, resolver Resolver) {
	defer conn.Close()
	metrics.TransferStarted()
	defer metrics.TransferFinished()

	remote := conn.RemoteAddr().String()
	name, err := ReadRequest(bufio.NewReader(conn))
	if err != nil {
		logging.Warn("bad transfer request", zap.String("remote", remote), zap.Error(err))
		metrics.RecordTransfer("bad_request")
		return
	}

	path, ok := resolver.ResolvePath(name)
	if !ok {
		refuse(conn, name, remote, "not registered")
		return
	}

	f, err := os.Open(path)
	if err != nil {
		refuse(conn, name, remote, "not readable")
		return
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil || !fi.Mode().IsRegular() {
		refuse(conn, name, remote, "not a regular file")
		return
	}

	logging.Info("sending file", zap.String("name", name), zap.String("remote", remote),
		zap.Int64("size", fi.Size()))
	if err := WriteSize(conn, fi.Size()); err != nil {
		logging.Warn("transfer error", zap.String("name", name), zap.Error(err))
		metrics.RecordTransfer("error")
		return
	}

	n, err := io.Copy(conn, f)
	metrics.AddTransferBytes("sent", n)
	if err != nil {
		// No resume: the connection drops and the peer is expected to
		// request again.
		logging.Warn("transfer error", zap.String("name", name),
			zap.Int64("sent", n), zap.Error(err))
		metrics.RecordTransfer("error")
		return
	}
	metrics.RecordTransfer("ok")
	logging.Info("transfer complete", zap.String("name", name), zap.Int64("bytes", n))
}

func refuse(conn net.Conn, name, remote, reason string) {
	logging.Warn("refused transfer request", zap.String("name", name),
		zap.String("remote", remote), zap.String("reason", reason))
	metrics.RecordTransfer("refused")
	if err := WriteSize(conn, SizeUnavailable); err != nil {
		logging.Debug("writing refusal sentinel", zap.Error(err))
	}
}
