// Package mapping canonicalizes sender names and resolves them to folders.
// Lookups are exact after whitespace normalization; there is no fuzzy matching.
package mapping

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
)

// SenderMapping is the on-disk mapping file.
type SenderMapping struct {
	Folders  map[string]string `json:"folders"`  // canonical sender -> folder
	Synonyms map[string]string `json:"synonyms"` // alias -> canonical sender
}

// Load reads the mapping JSON. Keys other than folders and synonyms are rejected.
func Load(path string) (SenderMapping, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return SenderMapping{}, fmt.Errorf("read sender mapping: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (SenderMapping, error) {
	var m SenderMapping
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&m); err != nil {
		return SenderMapping{}, fmt.Errorf("decode sender mapping: %w", err)
	}
	if m.Folders == nil {
		m.Folders = map[string]string{}
	}
	if m.Synonyms == nil {
		m.Synonyms = map[string]string{}
	}
	return m, nil
}

// NormalizeSender trims and collapses internal whitespace.
func NormalizeSender(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Mapper answers canonicalization and folder lookups. It is read-only after construction.
type Mapper struct {
	folders  map[string]string
	synonyms map[string]string
}

// NewMapper copies the mapping with normalized keys so later edits to m have no effect.
func NewMapper(m SenderMapping) *Mapper {
	mp := &Mapper{
		folders:  make(map[string]string, len(m.Folders)),
		synonyms: make(map[string]string, len(m.Synonyms)),
	}
	for k, v := range m.Folders {
		mp.folders[NormalizeSender(k)] = strings.TrimSpace(v)
	}
	for k, v := range m.Synonyms {
		mp.synonyms[NormalizeSender(k)] = v
	}
	return mp
}

// Canonicalize resolves an alias to its canonical sender. Unknown names map to themselves.
func (m *Mapper) Canonicalize(sender string) string {
	s := NormalizeSender(sender)
	if c, ok := m.synonyms[s]; ok {
		return NormalizeSender(c)
	}
	return s
}

// FolderFor returns the folder of a canonical sender, if one is mapped.
func (m *Mapper) FolderFor(canonical string) (string, bool) {
	f, ok := m.folders[NormalizeSender(canonical)]
	if !ok || f == "" {
		return "", false
	}
	return f, true
}

// KnownSenders lists the canonical senders that have a folder, sorted.
func (m *Mapper) KnownSenders() []string {
	out := make([]string, 0, len(m.folders))
	for k := range m.folders {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Folders lists the distinct mapped folder names, sorted.
func (m *Mapper) Folders() []string {
	seen := make(map[string]struct{}, len(m.folders))
	out := make([]string, 0, len(m.folders))
	for _, f := range m.folders {
		if f == "" {
			continue
		}
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}
