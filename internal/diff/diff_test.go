package diff

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPartition_AllFourSets(t *testing.T) {
	// Given: local and remote state with one path in each category
	local := map[string]string{
		"repo/new.txt":       "h1",
		"repo/modified.txt":  "h2-new",
		"repo/unchanged.txt": "h3",
	}
	remote := map[string]string{
		"repo/modified.txt":  "h2-old",
		"repo/unchanged.txt": "h3",
		"repo/deleted.txt":   "h4",
	}

	// When: partitioned in prefix-scoped mode
	r := Partition(local, remote, PrefixScoped)

	// Then: each path lands in exactly one set
	assert.Equal(t, []string{"repo/new.txt"}, r.New)
	assert.Equal(t, []string{"repo/modified.txt"}, r.Modified)
	assert.Equal(t, []string{"repo/unchanged.txt"}, r.Unchanged)
	assert.Equal(t, []string{"repo/deleted.txt"}, r.Deleted)
}

func TestPartition_FlatModeNeverDeletes(t *testing.T) {
	local := map[string]string{"a.txt": "h1"}
	remote := map[string]string{"b.txt": "h2", "c.txt": "h3"}

	r := Partition(local, remote, Flat)

	assert.Equal(t, []string{"a.txt"}, r.New)
	assert.Empty(t, r.Deleted)
}

func TestPartition_EmptyInputs(t *testing.T) {
	r := Partition(nil, nil, PrefixScoped)
	assert.Empty(t, r.New)
	assert.Empty(t, r.Modified)
	assert.Empty(t, r.Unchanged)
	assert.Empty(t, r.Deleted)
	assert.Equal(t, 0, r.Total())
}

func TestPartition_OutputSorted(t *testing.T) {
	local := map[string]string{
		"repo/z.txt": "h1",
		"repo/a.txt": "h2",
		"repo/m.txt": "h3",
	}

	r := Partition(local, map[string]string{}, PrefixScoped)

	assert.Equal(t, []string{"repo/a.txt", "repo/m.txt", "repo/z.txt"}, r.New)
}

func TestPartition_SetsArePartition(t *testing.T) {
	// Given: overlapping local and remote key sets
	local := map[string]string{"a": "1", "b": "2", "c": "3", "d": "4"}
	remote := map[string]string{"c": "3", "d": "9", "e": "5", "f": "6"}

	r := Partition(local, remote, PrefixScoped)

	// Then: the four sets cover keys(local) ∪ keys(remote) with no overlap
	seen := map[string]int{}
	for _, set := range [][]string{r.New, r.Modified, r.Unchanged, r.Deleted} {
		for _, p := range set {
			seen[p]++
		}
	}
	assert.Len(t, seen, 6)
	for p, n := range seen {
		assert.Equal(t, 1, n, "path %s appears %d times", p, n)
	}
}
