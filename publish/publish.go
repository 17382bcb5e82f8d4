// Package publish commits frames to reader-visible paths.
//
// A frame is copied to a sibling temporary file and renamed over the
// destination. Readers on the same filesystem see either the previous
// complete file or the new complete file.
package publish

import (
	"fmt"
	"io"
	"os"
)

// TempSuffix is appended to the destination to form the staging path.
const TempSuffix = ".tmp"

// File atomically replaces dst with a copy of src. The copy keeps the mode
// and modification time of src.
func File(src, dst string) error {
	tmp := dst + TempSuffix

	if err := os.Remove(tmp); err != nil && !os.IsNotExist(err) {
		return &PublishError{Dst: dst, Op: "remove stale temp", Err: err}
	}

	fi, err := copyFile(src, tmp)
	if err != nil {
		os.Remove(tmp)
		return &PublishError{Dst: dst, Op: "copy", Err: err}
	}

	if err := os.Chtimes(tmp, fi.ModTime(), fi.ModTime()); err != nil {
		os.Remove(tmp)
		return &PublishError{Dst: dst, Op: "chtimes", Err: err}
	}

	if err := os.Rename(tmp, dst); err != nil {
		os.Remove(tmp)
		return &PublishError{Dst: dst, Op: "rename", Err: err}
	}

	return nil
}

// copyFile writes the content of src to dst and syncs it. It returns the
// FileInfo of src.
func copyFile(src, dst string) (os.FileInfo, error) {
	in, err := os.Open(src)
	if err != nil {
		return nil, err
	}
	defer in.Close()

	fi, err := in.Stat()
	if err != nil {
		return nil, err
	}

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, fi.Mode().Perm())
	if err != nil {
		return nil, err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return nil, err
	}
	if err := out.Sync(); err != nil {
		out.Close()
		return nil, err
	}
	if err := out.Close(); err != nil {
		return nil, err
	}

	return fi, nil
}

// PublishError reports a failed step while publishing to Dst.
type PublishError struct {
	Dst string
	Op  string
	Err error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("publish %s: %s: %v", e.Dst, e.Op, e.Err)
}

func (e *PublishError) Unwrap() error {
	return e.Err
}
