// Package fileutil holds the filesystem primitives used to commit finished
// transcodes.
package fileutil

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// MoveFile moves src to dst. A same-filesystem move is a single rename. When
// the two paths live on different filesystems the file is copied to a
// temporary name next to dst, verified, renamed into place, and only then is
// src removed, so dst never exists in a partially written state.
func MoveFile(src, dst string) error {
	err := os.Rename(src, dst)
	if err == nil {
		return nil
	}
	if !errors.Is(err, unix.EXDEV) {
		return err
	}

	tmp, err := copyToTemp(src, dst)
	if err != nil {
		return fmt.Errorf("cross-device copy: %w", err)
	}
	if err := os.Rename(tmp, dst); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename copied file into place: %w", err)
	}
	if err := os.Remove(src); err != nil {
		return fmt.Errorf("remove source after copy: %w", err)
	}
	return nil
}

func copyToTemp(src, dst string) (string, error) {
	info, err := os.Stat(src)
	if err != nil {
		return "", fmt.Errorf("stat source: %w", err)
	}
	out, err := os.CreateTemp(filepath.Dir(dst), "."+filepath.Base(dst)+".*.tmp")
	if err != nil {
		return "", err
	}
	tmp := out.Name()
	if err := copyVerified(src, out, info.Size()); err != nil {
		_ = out.Close()
		_ = os.Remove(tmp)
		return "", err
	}
	if err := out.Chmod(info.Mode().Perm()); err != nil {
		_ = out.Close()
		_ = os.Remove(tmp)
		return "", err
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(tmp)
		return "", err
	}
	return tmp, nil
}

// copyVerified streams src into out, flushes it to disk, and then checks
// that what reads back from out's path matches src in size and SHA256.
func copyVerified(src string, out *os.File, srcSize int64) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	srcHasher := sha256.New()
	written, err := io.Copy(out, io.TeeReader(in, srcHasher))
	if err != nil {
		return err
	}
	if err := out.Sync(); err != nil {
		return err
	}
	if written != srcSize {
		return fmt.Errorf("copy size mismatch: source %d bytes, copied %d bytes", srcSize, written)
	}
	return verifyFile(out.Name(), srcSize, srcHasher.Sum(nil))
}

// verifyFile re-reads path and compares it against the expected size and
// digest.
func verifyFile(path string, size int64, digest []byte) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("reopen copy: %w", err)
	}
	defer f.Close()

	hasher := sha256.New()
	read, err := io.Copy(hasher, f)
	if err != nil {
		return fmt.Errorf("read back copy: %w", err)
	}
	if read != size {
		return fmt.Errorf("copy size mismatch: expected %d bytes, found %d bytes", size, read)
	}
	if !bytes.Equal(hasher.Sum(nil), digest) {
		return errors.New("copy hash mismatch: file corrupted during copy")
	}
	return nil
}

// SameFilesystem reports whether a and b reside on the same device, which is
// what decides whether MoveFile can rename directly.
func SameFilesystem(a, b string) (bool, error) {
	var sa, sb unix.Stat_t
	if err := unix.Stat(a, &sa); err != nil {
		return false, fmt.Errorf("stat %s: %w", a, err)
	}
	if err := unix.Stat(b, &sb); err != nil {
		return false, fmt.Errorf("stat %s: %w", b, err)
	}
	return sa.Dev == sb.Dev, nil
}
