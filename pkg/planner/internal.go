package planner

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/afero"

	"github.com/yuya-takeyama/strict-dedupe/internal/checksum"
)

// bucketBy splits records by key, keeping first-appearance order for buckets
// and input order inside each bucket. Records with a nil key are left out.
func bucketBy(records []*FileRecord, key func(*FileRecord) checksum.Sum) [][]*FileRecord {
	index := make(map[string]int)
	var buckets [][]*FileRecord
	for _, rec := range records {
		sum := key(rec)
		if rec.Unhashable || sum == nil {
			continue
		}
		i, ok := index[string(sum)]
		if !ok {
			i = len(buckets)
			index[string(sum)] = i
			buckets = append(buckets, nil)
		}
		buckets[i] = append(buckets[i], rec)
	}
	return buckets
}

func partialKey(rec *FileRecord) checksum.Sum { return rec.PartialHash }
func fullKey(rec *FileRecord) checksum.Sum    { return rec.FullHash }

// splitName splits a base name into stem and extension. Leading dots belong
// to the stem, so ".bashrc" has no extension and "a.tar.gz" has ".gz".
func splitName(name string) (stem, ext string) {
	trimmed := strings.TrimLeft(name, ".")
	ext = filepath.Ext(trimmed)
	return name[:len(name)-len(ext)], ext
}

// readable drops records the hash engine could not read.
func readable(records []*FileRecord) []*FileRecord {
	out := make([]*FileRecord, 0, len(records))
	for _, rec := range records {
		if !rec.Unhashable {
			out = append(out, rec)
		}
	}
	return out
}

// withSuffix inserts -n before the extension.
func withSuffix(name string, n int) string {
	stem, ext := splitName(name)
	return stem + "-" + strconv.Itoa(n) + ext
}

// pathExists reports whether anything occupies path, without following a
// final symlink when the filesystem allows it. Errors other than "not
// exist" count as occupied.
func pathExists(fsys afero.Fs, path string) bool {
	var err error
	if l, ok := fsys.(afero.Lstater); ok {
		_, _, err = l.LstatIfPossible(path)
	} else {
		_, err = fsys.Stat(path)
	}
	return !os.IsNotExist(err)
}
