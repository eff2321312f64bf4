package planner

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/yuya-takeyama/strict-dedupe/internal/checksum"
	"github.com/yuya-takeyama/strict-dedupe/pkg/errors"
)

// GroupBySize groups records by exact size. Groups are ordered by their first
// member and keep traversal order inside. Singleton groups cannot hold a
// duplicate and are dropped; pruned counts them.
func GroupBySize(records []*FileRecord) (groups []SizeGroup, pruned int) {
	index := make(map[int64]int)
	var all []SizeGroup
	for _, rec := range records {
		i, ok := index[rec.Size]
		if !ok {
			i = len(all)
			index[rec.Size] = i
			all = append(all, SizeGroup{Size: rec.Size})
		}
		all[i].Records = append(all[i].Records, rec)
	}

	groups = []SizeGroup{}
	for _, g := range all {
		if len(g.Records) < 2 {
			pruned++
			continue
		}
		groups = append(groups, g)
	}
	return groups, pruned
}

// ResolveDuplicates turns hashed size groups into duplicate groups. Within a
// size group records are bucketed by partial digest, then by full digest;
// every full-digest bucket with two or more members becomes a group whose
// Keep is its first member in traversal order. Unhashable records never take
// part. Groups are ordered by Keep.Index.
func ResolveDuplicates(sizeGroups []SizeGroup) []DuplicateGroup {
	groups := []DuplicateGroup{}
	for _, sg := range sizeGroups {
		for _, partial := range bucketBy(sg.Records, partialKey) {
			if len(partial) < 2 {
				continue
			}
			for _, full := range bucketBy(partial, fullKey) {
				if len(full) < 2 {
					continue
				}
				groups = append(groups, DuplicateGroup{
					Size:       sg.Size,
					Hash:       full[0].FullHash,
					Keep:       full[0],
					Duplicates: full[1:],
				})
			}
		}
	}

	sort.Slice(groups, func(i, j int) bool {
		return groups[i].Keep.Index < groups[j].Keep.Index
	})
	return groups
}

// ResolveRenames assigns a new name to every file whose base name was already
// seen earlier in traversal order. The first occurrence keeps its name; later
// ones get the lowest N >= 1 for which stem-N.ext is not on disk next to the
// file, is not the base name of any scanned file, and was not handed out
// before in this plan. A name group that runs past maxSuffix is dropped whole
// and reported as a PLAN_CONFLICT warning.
func ResolveRenames(records []*FileRecord, exists func(path string) bool, maxSuffix int) ([]RenameEntry, []errors.Warning) {
	if maxSuffix <= 0 {
		maxSuffix = DefaultMaxSuffix
	}

	taken := make(map[string]struct{}, len(records))
	byName := make(map[string][]*FileRecord)
	var names []string
	for _, rec := range records {
		name := filepath.Base(rec.Path)
		taken[name] = struct{}{}
		if _, ok := byName[name]; !ok {
			names = append(names, name)
		}
		byName[name] = append(byName[name], rec)
	}

	assigned := make(map[string]struct{})
	entries := []RenameEntry{}
	var warnings []errors.Warning

	for _, name := range names {
		occurrences := byName[name]
		if len(occurrences) < 2 {
			continue
		}
		first := occurrences[0]

		var group []RenameEntry
		var conflict *errors.DedupeError
		for _, rec := range occurrences[1:] {
			dir := filepath.Dir(rec.Path)
			newName := ""
			for n := 1; n <= maxSuffix; n++ {
				candidate := withSuffix(name, n)
				if _, ok := taken[candidate]; ok {
					continue
				}
				if _, ok := assigned[candidate]; ok {
					continue
				}
				if exists(filepath.Join(dir, candidate)) {
					continue
				}
				newName = candidate
				break
			}
			if newName == "" {
				conflict = errors.PlanConflictError(rec.Path, maxSuffix)
				break
			}

			assigned[newName] = struct{}{}
			group = append(group, RenameEntry{
				Index:        rec.Index,
				Size:         rec.Size,
				OriginalPath: rec.Path,
				NewPath:      filepath.Join(dir, newName),
				Reason:       fmt.Sprintf("name collides with %s", first.Path),
			})
		}

		if conflict != nil {
			for _, e := range group {
				delete(assigned, filepath.Base(e.NewPath))
			}
			warnings = append(warnings, errors.AsWarning(conflict))
			continue
		}
		entries = append(entries, group...)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Index < entries[j].Index
	})
	return entries, warnings
}

// Destinations allocates move targets below the duplicates directory. A
// duplicate found at <root>/<rel> goes to <dir>/<label>/<rel>, where label is
// the root's base name made unique across roots.
type Destinations struct {
	dir       string
	labels    map[string]string
	exists    func(path string) bool
	maxSuffix int
	assigned  map[string]struct{}
}

// NewDestinations labels roots in the order given.
func NewDestinations(dir string, roots []string, exists func(path string) bool, maxSuffix int) *Destinations {
	if maxSuffix <= 0 {
		maxSuffix = DefaultMaxSuffix
	}
	d := &Destinations{
		dir:       dir,
		labels:    make(map[string]string),
		exists:    exists,
		maxSuffix: maxSuffix,
		assigned:  make(map[string]struct{}),
	}

	used := make(map[string]struct{})
	for _, root := range roots {
		root = filepath.Clean(root)
		if _, ok := d.labels[root]; ok {
			continue
		}
		base := filepath.Base(root)
		if base == "." || base == string(filepath.Separator) {
			base = "root"
		}
		label := base
		for n := 1; ; n++ {
			if _, ok := used[label]; !ok {
				break
			}
			label = fmt.Sprintf("%s-%d", base, n)
		}
		used[label] = struct{}{}
		d.labels[root] = label
	}
	return d
}

// For returns the destination for rec. Paths already on disk or already
// handed out get a numeric suffix.
func (d *Destinations) For(rec *FileRecord) (string, error) {
	label, ok := d.labels[filepath.Clean(rec.Root)]
	if !ok {
		label = "root"
	}
	target := filepath.Join(d.dir, label, filepath.FromSlash(rec.RelPath))
	if d.free(target) {
		d.assigned[target] = struct{}{}
		return target, nil
	}

	dir, name := filepath.Split(target)
	for n := 1; n <= d.maxSuffix; n++ {
		candidate := filepath.Join(dir, withSuffix(name, n))
		if d.free(candidate) {
			d.assigned[candidate] = struct{}{}
			return candidate, nil
		}
	}
	return "", errors.PlanConflictError(rec.Path, d.maxSuffix)
}

func (d *Destinations) free(path string) bool {
	if _, ok := d.assigned[path]; ok {
		return false
	}
	return !d.exists(path)
}

// BuildInput carries the resolver outputs into BuildPlan.
type BuildInput struct {
	Groups       []DuplicateGroup
	Renames      []RenameEntry
	Warnings     []errors.Warning
	FilesScanned int
	Algorithm    checksum.Algorithm
	Destinations *Destinations
}

// BuildPlan orders actions as duplicate moves (by group, then traversal
// order) followed by renames (traversal order). A file that is moved as a
// duplicate is not renamed as well.
func BuildPlan(in BuildInput) *Plan {
	plan := &Plan{
		Actions:  []Action{},
		Groups:   []DuplicateGroup{},
		Renames:  []RenameEntry{},
		Warnings: append([]errors.Warning{}, in.Warnings...),
	}

	moved := make(map[string]struct{})
	for _, group := range in.Groups {
		plan.Groups = append(plan.Groups, group)
		plan.Summary.DuplicateGroups++

		for _, dup := range group.Duplicates {
			if in.Destinations == nil {
				plan.Summary.DuplicateFiles++
				plan.Summary.ReclaimableBytes += dup.Size
				continue
			}

			dst, err := in.Destinations.For(dup)
			if err != nil {
				// never moved, so nothing is reclaimed
				plan.Warnings = append(plan.Warnings, errors.AsWarning(err))
				continue
			}
			plan.Summary.DuplicateFiles++
			plan.Summary.ReclaimableBytes += dup.Size
			moved[dup.Path] = struct{}{}
			plan.Actions = append(plan.Actions, Action{
				Kind:        ActionMove,
				Source:      dup.Path,
				Destination: dst,
				Size:        dup.Size,
				Reason:      fmt.Sprintf("duplicate of %s (%s:%s)", group.Keep.Path, in.Algorithm, group.Hash.Short()),
			})
		}
	}

	for _, entry := range in.Renames {
		if _, ok := moved[entry.OriginalPath]; ok {
			plan.Summary.RenamesSuppressed++
			continue
		}
		plan.Renames = append(plan.Renames, entry)
		plan.Actions = append(plan.Actions, Action{
			Kind:        ActionRename,
			Source:      entry.OriginalPath,
			Destination: entry.NewPath,
			Size:        entry.Size,
			Reason:      entry.Reason,
		})
	}

	plan.Summary.FilesScanned = in.FilesScanned
	plan.Summary.Renames = len(plan.Renames)
	plan.Summary.Warnings = len(plan.Warnings)
	return plan
}
