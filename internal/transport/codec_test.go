package transport

import (
	"bufio"
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestRequestRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteRequest(&buf, "report.pdf"); err != nil {
		t.Fatalf("WriteRequest: %v", err)
	}

	name, err := ReadRequest(bufio.NewReader(&buf))
	if err != nil {
		t.Fatalf("ReadRequest: %v", err)
	}
	if name != "report.pdf" {
		t.Fatalf("expected report.pdf, got %q", name)
	}
}

func TestWriteRequestRejectsInvalidNames(t *testing.T) {
	for _, name := range []string{
		"",
		"../etc/passwd",
		"dir/file.txt",
		"dir\\file.txt",
		"nul\x00byte",
		strings.Repeat("x", MaxNameLen+1),
	} {
		var buf bytes.Buffer
		if err := WriteRequest(&buf, name); !errors.Is(err, ErrBadName) {
			t.Errorf("name %q: expected ErrBadName, got %v", name, err)
		}
	}
}

func TestReadRequestRejectsOversizedFrame(t *testing.T) {
	var buf bytes.Buffer
	// Hand-build a frame claiming a giant name.
	buf.Write([]byte{0xff, 0xff, 0xff, 0x7f})
	if _, err := ReadRequest(bufio.NewReader(&buf)); err == nil {
		t.Fatal("expected error for oversized frame")
	}
}

func TestSizeRoundTrip(t *testing.T) {
	for _, size := range []int64{0, 1, 4096, 1 << 40, SizeUnavailable} {
		var buf bytes.Buffer
		if err := WriteSize(&buf, size); err != nil {
			t.Fatalf("WriteSize(%d): %v", size, err)
		}
		if buf.Len() != 8 {
			t.Fatalf("size header must be 8 bytes, got %d", buf.Len())
		}
		got, err := ReadSize(&buf)
		if err != nil {
			t.Fatalf("ReadSize: %v", err)
		}
		if got != size {
			t.Fatalf("expected %d, got %d", size, got)
		}
	}
}

func TestReadSizeShortHeader(t *testing.T) {
	if _, err := ReadSize(bytes.NewReader([]byte{0, 1, 2})); err == nil {
		t.Fatal("expected error for truncated size header")
	}
}
