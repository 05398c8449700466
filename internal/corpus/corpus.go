// Package corpus serializes the finished record list. The on-disk shape is
// consumed by downstream systems, so it is a pretty-printed UTF-8 JSON array
// with the record field names preserved exactly.
package corpus

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"

	"ppls/internal"
)

// Write stores records at path atomically. An empty run writes an empty
// array, never null.
func Write(path string, records []internal.OutputRecord) error {
	if records == nil {
		records = []internal.OutputRecord{}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(records); err != nil {
		return err
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
