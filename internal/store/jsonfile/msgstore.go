// Package jsonfile persists bus records as per-topic JSON files and exposes
// them as a file:// transport.
package jsonfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/hay-kot/rtscope/internal/core/messaging"
)

const DefaultMaxRecords = 10_000

const topicExt = ".json"

// MsgStore implements messaging.Store with one JSON file per topic. Topic
// names are path-escaped into file names, so "arm/left" is stored as
// "arm%2Fleft.json". Every file has a sibling .lock used with flock so that
// several rtscope processes can share a directory.
type MsgStore struct {
	dir        string
	maxRecords int
	now        func() time.Time
	mu         sync.RWMutex
}

// NewMsgStore creates a record store rooted at dir
// (e.g., $XDG_DATA_HOME/rtscope/topics).
func NewMsgStore(dir string) *MsgStore {
	return &MsgStore{
		dir:        dir,
		maxRecords: DefaultMaxRecords,
		now:        time.Now,
	}
}

// WithMaxRecords caps how many records each topic keeps. Values <= 0 keep
// the current cap.
func (s *MsgStore) WithMaxRecords(n int) *MsgStore {
	if n > 0 {
		s.maxRecords = n
	}
	return s
}

// Dir returns the directory holding the topic files.
func (s *MsgStore) Dir() string {
	return s.dir
}

func (s *MsgStore) path(topic string) string {
	return filepath.Join(s.dir, url.PathEscape(topic)+topicExt)
}

// lock takes an flock on the topic's lock file and returns the release func.
func (s *MsgStore) lock(topic string, exclusive bool) (func(), error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create topics directory: %w", err)
	}

	f, err := os.OpenFile(s.path(topic)+".lock", os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}

	how := syscall.LOCK_SH
	if exclusive {
		how = syscall.LOCK_EX
	}
	if err := syscall.Flock(int(f.Fd()), how); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("lock topic %q: %w", topic, err)
	}

	return func() {
		_ = syscall.Flock(int(f.Fd()), syscall.LOCK_UN)
		_ = f.Close()
	}, nil
}

func (s *MsgStore) read(topic string) (messaging.Topic, error) {
	unlock, err := s.lock(topic, false)
	if err != nil {
		return messaging.Topic{}, err
	}
	defer unlock()
	return s.load(topic)
}

// update loads topic under an exclusive lock, applies fn and saves the result
// when fn reports a change.
func (s *MsgStore) update(topic string, fn func(*messaging.Topic) bool) error {
	unlock, err := s.lock(topic, true)
	if err != nil {
		return err
	}
	defer unlock()

	t, err := s.load(topic)
	if err != nil {
		return err
	}
	if !fn(&t) {
		return nil
	}
	return s.save(t)
}

// Publish appends rec to its topic. A missing ID or timestamp is filled in.
// The oldest records are dropped once the topic exceeds the record cap.
func (s *MsgStore) Publish(_ context.Context, rec messaging.Record) error {
	if rec.Topic == "" {
		return errors.New("publish: empty topic")
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = s.now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.update(rec.Topic, func(t *messaging.Topic) bool {
		t.Records = append(t.Records, rec)
		if over := len(t.Records) - s.maxRecords; over > 0 {
			t.Records = slices.Delete(t.Records, 0, over)
		}
		t.UpdatedAt = s.now()
		return true
	})
}

// Subscribe returns the records of every topic matching pattern that were
// created after since, oldest first. A zero since returns everything.
// Patterns follow messaging.MatchTopic.
//
// Returns messaging.ErrTopicNotFound if no topic matches.
func (s *MsgStore) Subscribe(_ context.Context, pattern string, since time.Time) ([]messaging.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names, err := s.names()
	if err != nil {
		return nil, err
	}
	names = slices.DeleteFunc(names, func(n string) bool { return !messaging.MatchTopic(pattern, n) })
	if len(names) == 0 {
		return nil, messaging.ErrTopicNotFound
	}

	var out []messaging.Record
	for _, name := range names {
		t, err := s.read(name)
		if err != nil {
			return nil, err
		}
		for _, rec := range t.Records {
			if since.IsZero() || rec.CreatedAt.After(since) {
				out = append(out, rec)
			}
		}
	}

	slices.SortStableFunc(out, func(a, b messaging.Record) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return out, nil
}

// Topic returns one topic by exact name.
//
// Returns messaging.ErrTopicNotFound if it has never been written.
func (s *MsgStore) Topic(_ context.Context, name string) (messaging.Topic, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, err := os.Stat(s.path(name)); errors.Is(err, fs.ErrNotExist) {
		return messaging.Topic{}, messaging.ErrTopicNotFound
	}
	return s.read(name)
}

// List returns all topic names, sorted.
func (s *MsgStore) List(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names, err := s.names()
	if err != nil {
		return nil, err
	}
	slices.Sort(names)
	return names, nil
}

// Prune removes records older than olderThan and returns how many were
// removed. Topics left without records are deleted.
func (s *MsgStore) Prune(_ context.Context, olderThan time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	names, err := s.names()
	if err != nil {
		return 0, err
	}

	cutoff := s.now().Add(-olderThan)
	removed := 0
	var empty []string

	for _, name := range names {
		err := s.update(name, func(t *messaging.Topic) bool {
			before := len(t.Records)
			t.Records = slices.DeleteFunc(t.Records, func(r messaging.Record) bool {
				return !r.CreatedAt.After(cutoff)
			})
			removed += before - len(t.Records)
			if len(t.Records) == 0 {
				empty = append(empty, name)
				return false
			}
			if len(t.Records) == before {
				return false
			}
			t.UpdatedAt = s.now()
			return true
		})
		if err != nil {
			return removed, err
		}
	}

	for _, name := range empty {
		if err := s.remove(name); err != nil {
			return removed, err
		}
	}

	return removed, nil
}

func (s *MsgStore) remove(topic string) error {
	unlock, err := s.lock(topic, true)
	if err != nil {
		return err
	}
	err = os.Remove(s.path(topic))
	unlock()
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove topic %q: %w", topic, err)
	}
	_ = os.Remove(s.path(topic) + ".lock")
	return nil
}

// names lists topics on disk. Caller must hold s.mu.
func (s *MsgStore) names() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read topics directory: %w", err)
	}

	var names []string
	for _, entry := range entries {
		base, ok := strings.CutSuffix(entry.Name(), topicExt)
		if entry.IsDir() || !ok {
			continue
		}
		name, err := url.PathUnescape(base)
		if err != nil {
			continue
		}
		names = append(names, name)
	}
	return names, nil
}

// load reads a topic file. A missing or empty file is an empty topic.
func (s *MsgStore) load(name string) (messaging.Topic, error) {
	data, err := os.ReadFile(s.path(name))
	if errors.Is(err, fs.ErrNotExist) || (err == nil && len(data) == 0) {
		return messaging.Topic{Name: name}, nil
	}
	if err != nil {
		return messaging.Topic{}, fmt.Errorf("read topic %q: %w", name, err)
	}

	var t messaging.Topic
	if err := json.Unmarshal(data, &t); err != nil {
		return messaging.Topic{}, fmt.Errorf("parse topic %q: %w", name, err)
	}
	return t, nil
}

// save replaces the topic file through a rename.
func (s *MsgStore) save(t messaging.Topic) error {
	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal topic: %w", err)
	}

	path := s.path(t.Name)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write topic %q: %w", t.Name, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace topic %q: %w", t.Name, err)
	}
	return nil
}
