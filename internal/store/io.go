package store

import (
	"bytes"
	"encoding/json"
	"os"

	"github.com/natefinch/atomic"
	"github.com/pkg/errors"
)

// readJSON decodes the JSON file at path into out. A file that does not
// exist leaves out untouched.
func readJSON(path string, out any) error {
	b, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return nil
	case err != nil:
		return errors.Wrapf(err, "read %s", path)
	}
	if err := json.Unmarshal(b, out); err != nil {
		return errors.Wrapf(err, "decode %s", path)
	}
	return nil
}

// writeJSON replaces path with the indented encoding of v. The new content
// goes through a temp file in the same directory, so readers see either the
// old file or the new one.
func writeJSON(path string, v any, mode os.FileMode) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode store")
	}
	if err := atomic.WriteFile(path, bytes.NewReader(b)); err != nil {
		return errors.Wrapf(err, "replace %s", path)
	}
	return errors.Wrapf(os.Chmod(path, mode), "chmod %s", path)
}
