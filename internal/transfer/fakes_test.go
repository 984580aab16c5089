package transfer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"sort"
	"sync"
)

// eventLog records transport calls in the order they happened.
type eventLog struct {
	mu     sync.Mutex
	events []string
}

func (l *eventLog) add(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, fmt.Sprintf(format, args...))
}

func (l *eventLog) all() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.events...)
}

func (l *eventLog) index(event string) int {
	for i, e := range l.all() {
		if e == event {
			return i
		}
	}
	return -1
}

type fakeSource struct {
	log       *eventLog
	mu        sync.Mutex
	files     map[string]string
	listErr   error
	fetchErr  map[string]error
	deleteErr map[string]error
	onFetch   func(remote string)
	onList    func()
}

func newFakeSource(log *eventLog, files map[string]string) *fakeSource {
	return &fakeSource{log: log, files: files, fetchErr: map[string]error{}, deleteErr: map[string]error{}}
}

func (s *fakeSource) Kind() string { return "ftp" }

func (s *fakeSource) List(ctx context.Context, dir string) ([]string, error) {
	s.log.add("list:%s", dir)
	if s.listErr != nil {
		return nil, s.listErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var entries []string
	for remote := range s.files {
		if path.Dir(remote) == dir {
			entries = append(entries, remote)
		}
	}
	sort.Strings(entries)
	if s.onList != nil {
		s.onList()
	}
	return entries, nil
}

func (s *fakeSource) Fetch(ctx context.Context, remote, local string) error {
	s.log.add("fetch:%s", path.Base(remote))
	if s.onFetch != nil {
		s.onFetch(remote)
	}
	if err := s.fetchErr[remote]; err != nil {
		return err
	}
	s.mu.Lock()
	content, ok := s.files[remote]
	s.mu.Unlock()
	if !ok {
		return errors.New("no such file")
	}
	return os.WriteFile(local, []byte(content), 0o644)
}

func (s *fakeSource) Delete(ctx context.Context, remote string) error {
	s.log.add("delete:%s", path.Base(remote))
	if err := s.deleteErr[remote]; err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.files, remote)
	return nil
}

func (s *fakeSource) has(remote string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.files[remote]
	return ok
}

type fakeDestination struct {
	log     *eventLog
	mu      sync.Mutex
	objects map[string]string
	// failFor fails Publish when the local path's base name matches.
	failFor map[string]error
	calls   int
}

func newFakeDestination(log *eventLog) *fakeDestination {
	return &fakeDestination{log: log, objects: map[string]string{}, failFor: map[string]error{}}
}

func (d *fakeDestination) Kind() string { return "hdfs" }

func (d *fakeDestination) Publish(ctx context.Context, local, destination string, overwrite bool) error {
	d.log.add("publish:%s", path.Base(local))
	d.mu.Lock()
	d.calls++
	d.mu.Unlock()
	if err := d.failFor[path.Base(local)]; err != nil {
		return err
	}
	if !overwrite {
		return errors.New("overwrite expected")
	}
	data, err := os.ReadFile(local)
	if err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.objects[destination] = string(data)
	return nil
}

type recordedAudit struct {
	Subject string
	Status  string
}

type fakeAuditor struct {
	mu      sync.Mutex
	records []recordedAudit
}

func (a *fakeAuditor) Record(ctx context.Context, subject, status string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.records = append(a.records, recordedAudit{Subject: subject, Status: status})
}

func (a *fakeAuditor) statuses() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, len(a.records))
	for i, r := range a.records {
		out[i] = r.Status
	}
	return out
}
