package persistence

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/zstd"
)

const backupTimeFormat = "20060102-150405"

// Backup compresses the station file at src into dir as
// stations-<timestamp>.json.zst and returns the archive path.
// A missing src is not an error; the returned path is empty.
func Backup(src, dir string, now time.Time) (string, error) {
	in, err := os.Open(src)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("opening %s: %w", src, err)
	}
	defer in.Close()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating backup dir: %w", err)
	}

	var buf bytes.Buffer
	enc, err := zstd.NewWriter(&buf, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return "", fmt.Errorf("creating encoder: %w", err)
	}
	if _, err := io.Copy(enc, in); err != nil {
		enc.Close()
		return "", fmt.Errorf("compressing %s: %w", src, err)
	}
	if err := enc.Close(); err != nil {
		return "", fmt.Errorf("flushing encoder: %w", err)
	}

	dst := filepath.Join(dir, "stations-"+now.UTC().Format(backupTimeFormat)+".json.zst")
	if err := writeFileAtomic(dst, buf.Bytes()); err != nil {
		return "", err
	}
	slog.Info("station backup written", "path", dst, "bytes", buf.Len())
	return dst, nil
}

// Restore decompresses archive, checks that it decodes cleanly, and installs
// it at dst atomically. Returns the number of stations restored.
func Restore(archive, dst string) (int, error) {
	in, err := os.Open(archive)
	if err != nil {
		return 0, fmt.Errorf("opening %s: %w", archive, err)
	}
	defer in.Close()

	dec, err := zstd.NewReader(in)
	if err != nil {
		return 0, fmt.Errorf("creating decoder: %w", err)
	}
	defer dec.Close()

	raw, err := io.ReadAll(dec)
	if err != nil {
		return 0, fmt.Errorf("decompressing %s: %w", archive, err)
	}

	records, err := Decode(bytes.NewReader(raw))
	if err != nil {
		return 0, fmt.Errorf("archive %s is not a valid station file: %w", archive, err)
	}
	if err := writeFileAtomic(dst, raw); err != nil {
		return 0, err
	}
	slog.Info("station backup restored", "archive", archive, "path", dst, "stations", len(records))
	return len(records), nil
}
