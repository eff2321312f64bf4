package planner

import (
	"sync/atomic"
	"time"

	"github.com/yuya-takeyama/strict-dedupe/internal/checksum"
	"github.com/yuya-takeyama/strict-dedupe/pkg/errors"
	"github.com/yuya-takeyama/strict-dedupe/pkg/logger"
)

// FileRecord is one scanned regular file. Hash fields are filled at most once
// per run, by the hash engine's handler.
type FileRecord struct {
	Index       int          `json:"index" yaml:"index"`
	Path        string       `json:"path" yaml:"path"`
	Root        string       `json:"-" yaml:"-"`
	RelPath     string       `json:"-" yaml:"-"`
	Size        int64        `json:"size" yaml:"size"`
	PartialHash checksum.Sum `json:"partial_hash,omitempty" yaml:"partial_hash,omitempty"`
	FullHash    checksum.Sum `json:"full_hash,omitempty" yaml:"full_hash,omitempty"`
	Unhashable  bool         `json:"unhashable,omitempty" yaml:"unhashable,omitempty"`
}

// SizeGroup holds records of one exact size in traversal order.
type SizeGroup struct {
	Size    int64
	Records []*FileRecord
}

// DuplicateGroup is a set of files with identical content. Keep has the
// lowest traversal index; Duplicates follow in traversal order.
type DuplicateGroup struct {
	Size       int64         `json:"size" yaml:"size"`
	Hash       checksum.Sum  `json:"hash" yaml:"hash"`
	Keep       *FileRecord   `json:"keep" yaml:"keep"`
	Duplicates []*FileRecord `json:"duplicates" yaml:"duplicates"`
}

// RenameEntry moves a file to a collision-free name in its own directory.
type RenameEntry struct {
	Index        int    `json:"-" yaml:"-"`
	Size         int64  `json:"-" yaml:"-"`
	OriginalPath string `json:"original_path" yaml:"original_path"`
	NewPath      string `json:"new_path" yaml:"new_path"`
	Reason       string `json:"reason" yaml:"reason"`
}

type ActionKind string

const (
	ActionMove   ActionKind = "move"
	ActionRename ActionKind = "rename"
)

type Action struct {
	Kind        ActionKind `json:"kind" yaml:"kind"`
	Source      string     `json:"source" yaml:"source"`
	Destination string     `json:"destination" yaml:"destination"`
	Size        int64      `json:"size" yaml:"size"`
	Reason      string     `json:"reason" yaml:"reason"`
}

type Summary struct {
	FilesScanned      int   `json:"files_scanned" yaml:"files_scanned"`
	DuplicateGroups   int   `json:"duplicate_groups" yaml:"duplicate_groups"`
	DuplicateFiles    int   `json:"duplicate_files" yaml:"duplicate_files"`
	ReclaimableBytes  int64 `json:"reclaimable_bytes" yaml:"reclaimable_bytes"`
	Renames           int   `json:"renames" yaml:"renames"`
	RenamesSuppressed int   `json:"renames_suppressed" yaml:"renames_suppressed"`
	Warnings          int   `json:"warnings" yaml:"warnings"`
}

// Plan is the ordered list of actions a run proposes. It holds no timing
// or other run-specific data, so an unchanged filesystem always produces an
// identical Plan.
type Plan struct {
	Actions  []Action         `json:"actions" yaml:"actions"`
	Groups   []DuplicateGroup `json:"groups" yaml:"groups"`
	Renames  []RenameEntry    `json:"renames" yaml:"renames"`
	Warnings []errors.Warning `json:"warnings" yaml:"warnings"`
	Summary  Summary          `json:"summary" yaml:"summary"`
}

// Report wraps a Plan with what varies between runs.
type Report struct {
	Plan    *Plan
	Elapsed time.Duration
	Stats   ProgressSnapshot
}

type Options struct {
	Roots          []string
	Excludes       []string
	DuplicatesDir  string
	Algorithm      checksum.Algorithm
	PrefixSize     int64
	Workers        int
	MaxSuffix      int
	FollowSymlinks bool
	Logger         logger.Logger
	// Progress is updated while the run is in flight. Optional.
	Progress *Progress
}

const (
	DefaultDuplicatesDir = "duplicates"
	DefaultMaxSuffix     = 10000
)

// Progress exposes counters that may be read concurrently with a run.
type Progress struct {
	FilesScanned  atomic.Int64
	Candidates    atomic.Int64
	PartialHashed atomic.Int64
	FullHashed    atomic.Int64
	BytesRead     atomic.Int64
	Unhashable    atomic.Int64
}

type ProgressSnapshot struct {
	FilesScanned  int64
	Candidates    int64
	PartialHashed int64
	FullHashed    int64
	BytesRead     int64
	Unhashable    int64
}

func (p *Progress) Snapshot() ProgressSnapshot {
	return ProgressSnapshot{
		FilesScanned:  p.FilesScanned.Load(),
		Candidates:    p.Candidates.Load(),
		PartialHashed: p.PartialHashed.Load(),
		FullHashed:    p.FullHashed.Load(),
		BytesRead:     p.BytesRead.Load(),
		Unhashable:    p.Unhashable.Load(),
	}
}
