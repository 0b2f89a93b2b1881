// Package filestore serves records from JSON data files, one per record
// type, in a data directory.
package filestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/Adithya-Monish-Kumar-K/compliance-search/internal/records"
)

// File names inside the data directory.
const (
	TasksFile       = "tasks.json"
	TeamFile        = "team.json"
	LegislationFile = "legislation.json"
)

// Files maps each record type to its data file name.
var Files = map[records.Type]string{
	records.TypeTask:        TasksFile,
	records.TypeTeam:        TeamFile,
	records.TypeLegislation: LegislationFile,
}

// Store reads the data files on every call so external edits are picked up
// by the next rebuild.
type Store struct {
	dir string
}

func New(dir string) *Store {
	return &Store{dir: dir}
}

func (s *Store) Dir() string { return s.dir }

// TypeForFile returns the record type stored in the named file.
func TypeForFile(name string) (records.Type, bool) {
	base := filepath.Base(name)
	for rt, f := range Files {
		if f == base {
			return rt, true
		}
	}
	return "", false
}

func (s *Store) LoadTasks(ctx context.Context) ([]records.Task, error) {
	var tasks []records.Task
	if err := s.read(ctx, TasksFile, &tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

func (s *Store) GetTask(ctx context.Context, key string) (*records.Task, error) {
	tasks, err := s.LoadTasks(ctx)
	if err != nil {
		return nil, err
	}
	for i := range tasks {
		if tasks[i].Key == key {
			return &tasks[i], nil
		}
	}
	return nil, nil
}

func (s *Store) LoadTeamMembers(ctx context.Context) ([]records.TeamMember, error) {
	var members []records.TeamMember
	if err := s.read(ctx, TeamFile, &members); err != nil {
		return nil, err
	}
	return members, nil
}

func (s *Store) LoadLegislation(ctx context.Context) ([]records.LegislationReference, error) {
	var refs []records.LegislationReference
	if err := s.read(ctx, LegislationFile, &refs); err != nil {
		return nil, err
	}
	return refs, nil
}

// A missing file is an empty table.
func (s *Store) read(ctx context.Context, name string, dst any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path := filepath.Join(s.dir, name)
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decoding %s: %w", path, err)
	}
	return nil
}

// Write replaces the data file for rt with v. Used by seeding tools and
// tests.
func (s *Store) Write(rt records.Type, v any) error {
	name, ok := Files[rt]
	if !ok {
		return fmt.Errorf("no data file for record type %q", rt)
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("creating data dir: %w", err)
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding %s: %w", name, err)
	}
	path := filepath.Join(s.dir, name)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", tmp, err)
	}
	return os.Rename(tmp, path)
}
