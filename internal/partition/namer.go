// Package partition derives date-partitioned destination paths for published files.
package partition

import (
	"fmt"
	"path"
	"sync"
	"time"
)

const (
	dateLayout      = "20060102"
	timestampLayout = "20060102150405"
)

// Name returns {root}/{entity}/upload_date={YYYYMMDD}/{entity}-{YYYYMMDD}-{YYYYMMDDHHMMSS}.csv.
// The upload_date directory is the partition key read by downstream query engines.
func Name(root, entity string, now time.Time) string {
	date := now.Format(dateLayout)
	file := fmt.Sprintf("%s-%s-%s.csv", entity, date, now.Format(timestampLayout))
	return path.Join(root, entity, "upload_date="+date, file)
}

// Namer hands out partition paths that stay unique within the process: a repeat request
// for the same entity inside the same second gets a numeric suffix.
type Namer struct {
	root string

	mu   sync.Mutex
	last map[string]issued
}

type issued struct {
	stamp string
	count int
}

// NewNamer creates a Namer rooted at the destination root.
func NewNamer(root string) *Namer {
	return &Namer{root: root, last: make(map[string]issued)}
}

// Root returns the destination root.
func (n *Namer) Root() string {
	return n.root
}

// Next returns the destination path for an upload of entity attempted at now.
func (n *Namer) Next(entity string, now time.Time) string {
	name := Name(n.root, entity, now)
	stamp := now.Format(timestampLayout)

	n.mu.Lock()
	defer n.mu.Unlock()

	prev, ok := n.last[entity]
	if !ok || prev.stamp != stamp {
		n.last[entity] = issued{stamp: stamp}
		return name
	}
	prev.count++
	n.last[entity] = prev
	return fmt.Sprintf("%s-%d.csv", name[:len(name)-len(".csv")], prev.count)
}
