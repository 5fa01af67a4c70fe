package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Ensure Memory implements Store.
var _ Store = (*Memory)(nil)

// Memory is an in-process Store holding the whole hierarchy as a single JSON
// document. It backs the test suite and the endpoint-less demo mode.
type Memory struct {
	mu  sync.Mutex
	doc []byte
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{doc: []byte(`{}`)}
}

// Snapshot returns a copy of the full document. Test helper.
func (m *Memory) Snapshot() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]byte, len(m.doc))
	copy(out, m.doc)
	return out
}

func (m *Memory) Get(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.get(path), nil
}

func (m *Memory) Update(ctx context.Context, path string, fields map[string]any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	// Marshal everything up front so a bad value cannot leave the update
	// half-applied.
	raws := make(map[string][]byte, len(fields))
	for field, value := range fields {
		raw, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("failed to marshal value for %s/%s: %w", path, field, err)
		}
		raws[field] = raw
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for field, raw := range raws {
		if err := m.setRaw(path+"/"+field, raw); err != nil {
			return err
		}
	}
	return nil
}

func (m *Memory) Push(ctx context.Context, path, key string, value any) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if key == "" {
		key = uuid.NewString()
	}
	if err := m.set(path+"/"+key, value); err != nil {
		return "", err
	}
	return key, nil
}

func (m *Memory) Swap(ctx context.Context, path string, expected, next any) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	current := m.get(path)
	if !jsonEqual(current, expected) {
		return false, nil
	}
	if next == nil {
		doc, err := sjson.DeleteBytes(m.doc, toDocPath(path))
		if err != nil {
			return false, fmt.Errorf("failed to delete %s: %w", path, err)
		}
		m.doc = doc
		return true, nil
	}
	if err := m.set(path, next); err != nil {
		return false, err
	}
	return true, nil
}

// get returns the raw JSON at path, nil if absent or null. Caller holds mu.
func (m *Memory) get(path string) []byte {
	res := gjson.GetBytes(m.doc, toDocPath(path))
	if !res.Exists() || res.Type == gjson.Null {
		return nil
	}
	return []byte(res.Raw)
}

// set marshals value and writes it at path. Caller holds mu.
func (m *Memory) set(path string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value for %s: %w", path, err)
	}
	return m.setRaw(path, raw)
}

// setRaw writes pre-marshaled JSON at path. Caller holds mu.
func (m *Memory) setRaw(path string, raw []byte) error {
	doc, err := sjson.SetRawBytes(m.doc, toDocPath(path), raw)
	if err != nil {
		return fmt.Errorf("failed to set %s: %w", path, err)
	}
	m.doc = doc
	return nil
}

// toDocPath converts a slash-separated store path into a gjson/sjson dotted
// path, escaping characters the path syntax treats specially.
func toDocPath(path string) string {
	segments := strings.Split(strings.Trim(path, "/"), "/")
	escaped := make([]string, len(segments))
	for i, seg := range segments {
		r := strings.NewReplacer("\\", "\\\\", ".", "\\.", "*", "\\*", "?", "\\?")
		escaped[i] = r.Replace(seg)
	}
	return strings.Join(escaped, ".")
}

// jsonEqual compares a raw JSON value against a Go value, treating nil raw
// and nil value as equal. Both sides are compacted before comparison.
func jsonEqual(raw []byte, value any) bool {
	if raw == nil || value == nil {
		return raw == nil && value == nil
	}
	want, err := json.Marshal(value)
	if err != nil {
		return false
	}
	var a, b bytes.Buffer
	if err := json.Compact(&a, raw); err != nil {
		return false
	}
	if err := json.Compact(&b, want); err != nil {
		return false
	}
	return bytes.Equal(a.Bytes(), b.Bytes())
}
