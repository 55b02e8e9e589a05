package table

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// isBinary reports whether path selects the protobuf Struct encoding.
func isBinary(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".pb")
}

// Encode renders doc as indented JSON, or as a protobuf Struct when binary.
func Encode(doc *Document, binary bool) ([]byte, error) {
	b, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode json: %w", err)
	}
	if !binary {
		return b, nil
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("encode struct: %w", err)
	}
	s, err := structpb.NewStruct(m)
	if err != nil {
		return nil, fmt.Errorf("encode struct: %w", err)
	}
	return proto.Marshal(s)
}

// Decode is the inverse of Encode.
func Decode(b []byte, binary bool) (*Document, error) {
	if binary {
		var s structpb.Struct
		if err := proto.Unmarshal(b, &s); err != nil {
			return nil, fmt.Errorf("decode struct: %w", err)
		}
		var err error
		if b, err = json.Marshal(s.AsMap()); err != nil {
			return nil, fmt.Errorf("decode struct: %w", err)
		}
	}
	var doc Document
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("decode json: %w", err)
	}
	return &doc, nil
}

// WriteFile writes doc to path, creating parent directories. The bytes go
// to a temp file in the same directory first and are renamed into place,
// so a failed write never leaves a partial artifact. Returns bytes written.
func WriteFile(path string, doc *Document) (int64, error) {
	b, err := Encode(doc, isBinary(path))
	if err != nil {
		return 0, err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, fmt.Errorf("create output dir: %w", err)
	}
	f, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return 0, fmt.Errorf("create temp artifact: %w", err)
	}
	tmp := f.Name()
	defer os.Remove(tmp) // no-op after a successful rename

	if _, err := f.Write(b); err != nil {
		f.Close()
		return 0, fmt.Errorf("write artifact: %w", err)
	}
	if err := f.Close(); err != nil {
		return 0, fmt.Errorf("close artifact: %w", err)
	}
	if err := os.Chmod(tmp, 0o644); err != nil {
		return 0, fmt.Errorf("chmod artifact: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return 0, fmt.Errorf("publish artifact: %w", err)
	}
	return int64(len(b)), nil
}

// LoadFile reads an artifact written by WriteFile.
func LoadFile(path string) (*Document, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read artifact: %w", err)
	}
	doc, err := Decode(b, isBinary(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}

// FormatFileSize renders a byte count for humans, e.g. "1.4 MiB".
func FormatFileSize(n int64) string {
	if n < 0 {
		n = 0
	}
	return humanize.IBytes(uint64(n))
}
