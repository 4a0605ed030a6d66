// Package transport implements the point-to-point peer transfer protocol:
// one length-prefixed file-name request per connection, answered with an
// 8-byte big-endian size header (negative meaning "not available") followed
// by the raw file bytes.
package transport

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/multiformats/go-varint"
)

// MaxNameLen bounds the request frame so a misbehaving peer cannot force an
// arbitrarily large allocation.
const MaxNameLen = 4096

// SizeUnavailable is the response sentinel for a file that is not
// registered, not readable, or a directory.
const SizeUnavailable int64 = -1

// ErrBadName reports an invalid file-name request.
var ErrBadName = fmt.Errorf("transport: invalid file name")

// ValidName reports whether name is acceptable as a request: non-empty UTF-8
// within MaxNameLen, a bare base name with no separators or NUL.
func ValidName(name string) bool {
	if name == "" || len(name) > MaxNameLen || !utf8.ValidString(name) {
		return false
	}
	return !strings.ContainsAny(name, "/\\\x00")
}

// WriteRequest frames a file-name request: uvarint byte length, then the
// UTF-8 name.
func WriteRequest(w io.Writer, name string) error {
	if !ValidName(name) {
		return fmt.Errorf("%w: %q", ErrBadName, name)
	}
	buf := varint.ToUvarint(uint64(len(name)))
	buf = append(buf, name...)
	_, err := w.Write(buf)
	return err
}

// ReadRequest reads a framed file-name request.
func ReadRequest(r *bufio.Reader) (string, error) {
	n, err := varint.ReadUvarint(r)
	if err != nil {
		return "", fmt.Errorf("reading request length: %w", err)
	}
	if n == 0 || n > MaxNameLen {
		return "", fmt.Errorf("%w: length %d", ErrBadName, n)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", fmt.Errorf("reading request name: %w", err)
	}
	name := string(buf)
	if !ValidName(name) {
		return "", fmt.Errorf("%w: %q", ErrBadName, name)
	}
	return name, nil
}

// WriteSize writes the 8-byte signed big-endian size header.
func WriteSize(w io.Writer, size int64) error {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(size))
	_, err := w.Write(buf[:])
	return err
}

// ReadSize reads the 8-byte signed big-endian size header.
func ReadSize(r io.Reader) (int64, error) {
	var buf [8]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, fmt.Errorf("reading size header: %w", err)
	}
	return int64(binary.BigEndian.Uint64(buf[:])), nil
}
