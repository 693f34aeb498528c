// Package persist provides codec-based file persistence with atomic replace.
//
// State files written through this package survive mid-run termination:
// content is first written to a temporary sibling file and then renamed
// over the target, so readers observe either the previous or the new
// state, never a torn write.
package persist

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// jsonExtension is the file extension for the JSON codec.
const jsonExtension = ".json"

// defaultIndent is the indentation for pretty-printed JSON.
const defaultIndent = "  "

// tmpPattern is the prefix pattern for temporary files used by atomic writes.
const tmpPattern = ".tmp-*"

// Codec defines how state is serialized and deserialized.
type Codec interface {
	// Encode writes the state to the writer.
	Encode(w io.Writer, state any) error
	// Decode reads the state from the reader.
	Decode(r io.Reader, state any) error
	// Extension returns the file extension for this codec (e.g., ".json").
	Extension() string
}

// JSONCodec implements Codec using JSON encoding with optional indentation.
type JSONCodec struct {
	// Indent specifies the indentation string. Empty string means compact JSON.
	Indent string
}

// NewJSONCodec creates a JSON codec with pretty-printing (2-space indent).
func NewJSONCodec() *JSONCodec {
	return &JSONCodec{Indent: defaultIndent}
}

// Encode implements Codec.Encode using JSON encoding.
func (c *JSONCodec) Encode(w io.Writer, state any) error {
	encoder := json.NewEncoder(w)
	if c.Indent != "" {
		encoder.SetIndent("", c.Indent)
	}

	err := encoder.Encode(state)
	if err != nil {
		return fmt.Errorf("json encode: %w", err)
	}

	return nil
}

// Decode implements Codec.Decode using JSON decoding.
func (c *JSONCodec) Decode(r io.Reader, state any) error {
	decoder := json.NewDecoder(r)

	err := decoder.Decode(state)
	if err != nil {
		return fmt.Errorf("json decode: %w", err)
	}

	return nil
}

// Extension implements Codec.Extension for JSON files.
func (c *JSONCodec) Extension() string {
	return jsonExtension
}

// SaveState atomically saves the given state to a file in the directory.
// The filename is constructed from the basename and the codec's extension.
func SaveState(dir, basename string, codec Codec, state any) error {
	path := filepath.Join(dir, basename+codec.Extension())

	return AtomicWrite(path, func(w io.Writer) error {
		return codec.Encode(w, state)
	})
}

// LoadState loads state from a file in the specified directory.
// The state parameter must be a pointer to the target struct.
func LoadState(dir, basename string, codec Codec, state any) error {
	path := filepath.Join(dir, basename+codec.Extension())

	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open state file: %w", err)
	}
	defer file.Close()

	err = codec.Decode(file, state)
	if err != nil {
		return fmt.Errorf("decode state: %w", err)
	}

	return nil
}

// AtomicWrite writes through a temporary file in the target's directory
// and renames it over the target on success.
func AtomicWrite(path string, write func(io.Writer) error) error {
	dir := filepath.Dir(path)

	mkdirErr := os.MkdirAll(dir, 0o755)
	if mkdirErr != nil {
		return fmt.Errorf("create state dir: %w", mkdirErr)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+tmpPattern)
	if err != nil {
		return fmt.Errorf("create temp state file: %w", err)
	}

	tmpName := tmp.Name()

	writeErr := write(tmp)
	if writeErr != nil {
		tmp.Close()
		os.Remove(tmpName)

		return fmt.Errorf("write state: %w", writeErr)
	}

	syncErr := tmp.Sync()
	if syncErr != nil {
		tmp.Close()
		os.Remove(tmpName)

		return fmt.Errorf("sync state: %w", syncErr)
	}

	closeErr := tmp.Close()
	if closeErr != nil {
		os.Remove(tmpName)

		return fmt.Errorf("close temp state file: %w", closeErr)
	}

	renameErr := os.Rename(tmpName, path)
	if renameErr != nil {
		os.Remove(tmpName)

		return fmt.Errorf("replace state file: %w", renameErr)
	}

	return nil
}

// WriteJSON atomically writes v as pretty-printed JSON to path.
func WriteJSON(path string, v any) error {
	codec := NewJSONCodec()

	return AtomicWrite(path, func(w io.Writer) error {
		return codec.Encode(w, v)
	})
}

// ReadJSON reads JSON from path into v, which must be a pointer.
func ReadJSON(path string, v any) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open json file: %w", err)
	}
	defer file.Close()

	decodeErr := json.NewDecoder(file).Decode(v)
	if decodeErr != nil {
		return fmt.Errorf("decode %s: %w", filepath.Base(path), decodeErr)
	}

	return nil
}
