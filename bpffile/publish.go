// SPDX-Licence-Identifier: MIT

package bpffile

import (
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

// WriteFile publishes data at path atomically: the bytes go to a temporary
// file next to path which is synced, closed and renamed over path. On error
// the temporary file is removed and path is left untouched.
func WriteFile(fs afero.Fs, path string, data []byte, perm os.FileMode) (err error) {
	dir, base := filepath.Split(path)
	if dir == "" {
		dir = "."
	}
	tmp, err := afero.TempFile(fs, dir, "."+base+".tmp-")
	if err != nil {
		return &SerializationError{Op: "create", Path: path, Err: err}
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			_ = tmp.Close()
			if rmErr := fs.Remove(tmpName); rmErr != nil && !os.IsNotExist(rmErr) {
				logrus.WithError(rmErr).WithField("path", tmpName).Warn("cannot remove temporary file")
			}
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		return &SerializationError{Op: "write", Path: path, Err: err}
	}
	if err = tmp.Sync(); err != nil {
		return &SerializationError{Op: "sync", Path: path, Err: err}
	}
	if err = tmp.Close(); err != nil {
		return &SerializationError{Op: "close", Path: path, Err: err}
	}
	if err = fs.Chmod(tmpName, perm); err != nil {
		return &SerializationError{Op: "chmod", Path: path, Err: err}
	}
	if err = fs.Rename(tmpName, path); err != nil {
		return &SerializationError{Op: "rename", Path: path, Err: err}
	}

	logrus.WithFields(logrus.Fields{
		"path":  path,
		"bytes": len(data),
	}).Debug("published seccomp program")
	return nil
}

// ReadFile reads a whole program file.
func ReadFile(fs afero.Fs, path string) ([]byte, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, &SerializationError{Op: "read", Path: path, Err: err}
	}
	return data, nil
}
