// Package fsutil holds the crash-safe file primitives shared by the config
// loader and the state store.
package fsutil

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

// BackupSuffix is appended to a state file to name its previous version.
const BackupSuffix = ".bak"

// WriteFileAtomic writes data to a temp file next to path, fsyncs it and
// renames it over path, so readers see either the old or the new content.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file in %s: %w", dir, err)
	}
	tmpPath := tmp.Name()

	fail := func(step string, err error) error {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("%s %s: %w", step, tmpPath, err)
	}

	if err := tmp.Chmod(perm); err != nil {
		return fail("chmod", err)
	}
	if _, err := tmp.Write(data); err != nil {
		return fail("write", err)
	}
	if err := tmp.Sync(); err != nil {
		return fail("fsync", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close %s: %w", tmpPath, err)
	}

	if err := rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename %s -> %s: %w", tmpPath, path, err)
	}
	syncDir(dir)
	return nil
}

// rename replaces dst. Windows refuses to rename over an existing file, so
// there the destination is removed first (not atomic).
func rename(src, dst string) error {
	err := os.Rename(src, dst)
	if err == nil || runtime.GOOS != "windows" {
		return err
	}
	if rmErr := os.Remove(dst); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
		return err
	}
	return os.Rename(src, dst)
}

// WriteJSON marshals v and writes it atomically, keeping the previous
// content at path+BackupSuffix.
func WriteJSON(path string, v any, perm os.FileMode) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("serialize %s: %w", filepath.Base(path), err)
	}
	if prev, err := os.ReadFile(path); err == nil && len(bytes.TrimSpace(prev)) > 0 {
		_ = WriteFileAtomic(path+BackupSuffix, prev, perm)
	}
	return WriteFileAtomic(path, data, perm)
}

// ReadJSON decodes path into v. When path is empty or unparsable it falls
// back to the backup copy; recovered reports whether that happened.
// A missing file returns an error wrapping os.ErrNotExist.
func ReadJSON(path string, v any) (recovered bool, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return false, err
	}
	if len(bytes.TrimSpace(data)) > 0 {
		if err := json.Unmarshal(data, v); err == nil {
			return false, nil
		}
	}

	bak, bakErr := os.ReadFile(path + BackupSuffix)
	if bakErr != nil || len(bytes.TrimSpace(bak)) == 0 {
		return false, fmt.Errorf("%s is corrupt and has no usable backup", filepath.Base(path))
	}
	if err := json.Unmarshal(bak, v); err != nil {
		return false, fmt.Errorf("%s is corrupt and its backup does not parse: %w", filepath.Base(path), err)
	}
	return true, nil
}

func syncDir(dir string) {
	f, err := os.Open(dir)
	if err != nil {
		return
	}
	defer f.Close()
	_ = f.Sync()
}
