package domain

import (
	"path"
	"strings"
)

// Entity is a named logical data feed, e.g. "order" or "customer".
type Entity struct {
	Name string `json:"name"`
}

// NewEntities builds the entity set from configured names, dropping blanks and duplicates
// while preserving first-seen order.
func NewEntities(names []string) []Entity {
	seen := make(map[string]struct{}, len(names))
	entities := make([]Entity, 0, len(names))
	for _, raw := range names {
		name := strings.TrimSpace(raw)
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		entities = append(entities, Entity{Name: name})
	}
	return entities
}

// Owns reports whether a remote entry belongs to the entity. Matching is an exact,
// case-sensitive prefix match on the entry's base name.
func (e Entity) Owns(remoteEntry string) bool {
	if e.Name == "" {
		return false
	}
	return strings.HasPrefix(path.Base(remoteEntry), e.Name)
}

// SourceFile is a remote drop file claimed by an entity. LocalPath is set once retrieved.
type SourceFile struct {
	Entity     Entity `json:"entity"`
	RemotePath string `json:"remotePath"`
	LocalPath  string `json:"localPath,omitempty"`
}

// Name returns the base file name of the remote entry.
func (f SourceFile) Name() string {
	return path.Base(f.RemotePath)
}

// SanitizedFile is the column-filtered local copy of a SourceFile.
type SanitizedFile struct {
	Path   string     `json:"path"`
	Source SourceFile `json:"source"`
}
