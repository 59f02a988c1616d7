package fetch

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/streamnest/go-vod-cache/internal/catalog"
)

// decodeRecords incrementally decodes a JSON array of raw catalog records,
// invoking fn once per record. Only one record is resident at a time, which
// keeps memory bounded while parsing very large pages.
func decodeRecords(r io.Reader, fn func(catalog.RawItem) error) error {
	dec := json.NewDecoder(r)

	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("read array open: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '[' {
		return fmt.Errorf("expected JSON array, got %v", tok)
	}

	for dec.More() {
		var raw catalog.RawItem
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("decode record: %w", err)
		}
		if err := fn(raw); err != nil {
			return err
		}
	}

	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("read array close: %w", err)
	}

	return nil
}
