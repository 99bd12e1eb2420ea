// Package dataset stores the payloads plugins write to named datasets.
package dataset

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"sync"
	"time"
)

// Writer stores raw bytes under a dataset identifier.
type Writer interface {
	WriteDataset(ctx context.Context, datasetID string, data []byte) error
}

var datasetIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._:-]*$`)

// ValidateID rejects identifiers that cannot be used as a storage key.
func ValidateID(datasetID string) error {
	if !datasetIDPattern.MatchString(datasetID) {
		return wrapError(CodeInvalidDataset, false, fmt.Errorf("invalid dataset id %q", datasetID))
	}
	return nil
}

// Extension guesses the file extension of a payload.
func Extension(data []byte) string {
	trimmed := bytes.TrimSpace(data)
	switch {
	case bytes.HasPrefix(data, parquetMagic):
		return "parquet"
	case len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '['):
		return "json"
	default:
		return "bin"
	}
}

// Memory keeps every payload in memory.
type Memory struct {
	mu   sync.Mutex
	data map[string][][]byte
}

// NewMemory returns an empty in-memory writer.
func NewMemory() *Memory {
	return &Memory{data: map[string][][]byte{}}
}

func (m *Memory) WriteDataset(ctx context.Context, datasetID string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := ValidateID(datasetID); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[datasetID] = append(m.data[datasetID], append([]byte(nil), data...))
	return nil
}

// Get returns every payload written to datasetID, oldest first.
func (m *Memory) Get(datasetID string) [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]byte(nil), m.data[datasetID]...)
}

// Latest returns the last payload written to datasetID.
func (m *Memory) Latest(datasetID string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w := m.data[datasetID]
	if len(w) == 0 {
		return nil, false
	}
	return w[len(w)-1], true
}

// objectKey is "<prefix>/<datasetID>/<timestamp>.<ext>".
func objectKey(prefix, datasetID string, at time.Time, data []byte) string {
	return joinPath(prefix, datasetID, fmt.Sprintf("%s.%s", at.UTC().Format("20060102T150405.000000000Z"), Extension(data)))
}
