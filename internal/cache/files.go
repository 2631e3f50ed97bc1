package cache

import (
	"bytes"
	"encoding/gob"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
)

// WriteJSON marshals v and atomically replaces path with it.
func WriteJSON(path string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return eris.Wrapf(err, "cache: marshal %s", filepath.Base(path))
	}
	return writeAtomic(path, data)
}

// ReadJSON unmarshals the file at path into v.
func ReadJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return eris.Wrapf(err, "cache: read %s", path)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return eris.Wrapf(err, "cache: decode %s", path)
	}
	return nil
}

// WriteGob gob-encodes v and atomically replaces path with it.
func WriteGob(path string, v any) error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return eris.Wrapf(err, "cache: encode %s", filepath.Base(path))
	}
	return writeAtomic(path, buf.Bytes())
}

// ReadGob decodes the gob file at path into v.
func ReadGob(path string, v any) error {
	f, err := os.Open(path)
	if err != nil {
		return eris.Wrapf(err, "cache: open %s", path)
	}
	defer f.Close() //nolint:errcheck
	if err := gob.NewDecoder(f).Decode(v); err != nil {
		return eris.Wrapf(err, "cache: decode %s", path)
	}
	return nil
}

// Exists reports whether path exists. Errors other than not-exist propagate.
func Exists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, eris.Wrapf(err, "cache: stat %s", path)
}

// writeAtomic writes data to a temp file in the destination directory and renames it
// into place, so readers never observe a partially written file.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return eris.Wrapf(err, "cache: create temp for %s", path)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()        //nolint:errcheck
		os.Remove(tmpName) //nolint:errcheck
		return eris.Wrapf(err, "cache: write %s", tmpName)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()        //nolint:errcheck
		os.Remove(tmpName) //nolint:errcheck
		return eris.Wrapf(err, "cache: sync %s", tmpName)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName) //nolint:errcheck
		return eris.Wrapf(err, "cache: close %s", tmpName)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName) //nolint:errcheck
		return eris.Wrapf(err, "cache: rename %s", path)
	}
	return nil
}
