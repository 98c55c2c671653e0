// Package diff partitions local and remote file-hash maps into the change
// sets a sync acts on. The partition is pure and deterministically ordered.
package diff

import "sort"

// Mode controls whether absence from the source implies deletion.
type Mode int

const (
	// PrefixScoped is used for repository and directory sources. The remote
	// map is pre-filtered to a scope prefix, so a path present remotely but
	// absent locally has genuinely been removed from the source.
	PrefixScoped Mode = iota

	// Flat is used for loose-archive sources. An archive is not
	// authoritative over the whole collection, so deletions are never
	// inferred.
	Flat
)

// Result is the four-way partition of keys(local) ∪ keys(remote).
// Each slice is sorted by logical path.
type Result struct {
	New       []string
	Modified  []string
	Unchanged []string
	Deleted   []string
}

// Total returns the number of paths across all four sets.
func (r Result) Total() int {
	return len(r.New) + len(r.Modified) + len(r.Unchanged) + len(r.Deleted)
}

// Partition compares local {logical_path → file_hash} against remote and
// classifies every path as new, modified, unchanged, or deleted. Deleted is
// always empty in Flat mode.
func Partition(local, remote map[string]string, mode Mode) Result {
	var r Result

	for path, localHash := range local {
		remoteHash, ok := remote[path]
		switch {
		case !ok:
			r.New = append(r.New, path)
		case localHash != remoteHash:
			r.Modified = append(r.Modified, path)
		default:
			r.Unchanged = append(r.Unchanged, path)
		}
	}

	if mode == PrefixScoped {
		for path := range remote {
			if _, ok := local[path]; !ok {
				r.Deleted = append(r.Deleted, path)
			}
		}
	}

	sort.Strings(r.New)
	sort.Strings(r.Modified)
	sort.Strings(r.Unchanged)
	sort.Strings(r.Deleted)

	return r
}
