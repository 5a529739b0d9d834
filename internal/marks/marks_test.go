package marks

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
)

func writeTestMarks(t *testing.T, width int, rows [][]Mark) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data.mrk")
	if err := WriteFile(path, rows, width); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestMarkFileRoundtrip(t *testing.T) {
	rows := [][]Mark{
		{{OffsetInCompressedFile: 0, OffsetInDecompressedBlock: 0}, {OffsetInCompressedFile: 10, OffsetInDecompressedBlock: 2}},
		{{OffsetInCompressedFile: 100, OffsetInDecompressedBlock: 0}, {OffsetInCompressedFile: 200, OffsetInDecompressedBlock: 4}},
	}
	path := writeTestMarks(t, 2, rows)

	got, err := ReadFile(path, 2, 2)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if len(got) != 4 {
		t.Fatalf("got %d marks, want 4", len(got))
	}
	if got[3].OffsetInCompressedFile != 200 || got[3].OffsetInDecompressedBlock != 4 {
		t.Errorf("mark (1,1) = %+v", got[3])
	}
}

func TestReadFileTruncated(t *testing.T) {
	path := filepath.Join(t.TempDir(), "short.mrk")
	if err := os.WriteFile(path, make([]byte, 8), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := ReadFile(path, 2, 1); err == nil {
		t.Error("truncated mark file should error")
	}
}

func TestLoaderLazy(t *testing.T) {
	rows := [][]Mark{
		{{OffsetInCompressedFile: 5, OffsetInDecompressedBlock: 1}},
		{{OffsetInCompressedFile: 50, OffsetInDecompressedBlock: 0}},
	}
	path := writeTestMarks(t, 1, rows)

	loader := NewLoader(path, 2, 1)

	// Remove the file after the first access: the slab must be retained.
	m, err := loader.Mark(0, 0)
	if err != nil {
		t.Fatalf("Mark(0,0): %v", err)
	}
	if m.OffsetInCompressedFile != 5 {
		t.Errorf("mark = %+v", m)
	}
	os.Remove(path)

	m, err = loader.Mark(1, 0)
	if err != nil {
		t.Fatalf("Mark(1,0) after file removal: %v", err)
	}
	if m.OffsetInCompressedFile != 50 {
		t.Errorf("mark = %+v", m)
	}

	if _, err := loader.Mark(2, 0); err == nil {
		t.Error("out-of-range granule should error")
	}
	if _, err := loader.Mark(0, 1); err == nil {
		t.Error("out-of-range column should error")
	}
}

func TestLoaderMissingFile(t *testing.T) {
	loader := NewLoader(filepath.Join(t.TempDir(), "absent.mrk"), 1, 1)
	if _, err := loader.Mark(0, 0); err == nil {
		t.Error("missing mark file should error")
	}
}

func TestCacheSharing(t *testing.T) {
	path := writeTestMarks(t, 1, [][]Mark{{{OffsetInCompressedFile: 1}}})
	cache := NewCache(0)

	created := 0
	factory := func() *Loader {
		created++
		return NewLoader(path, 1, 1)
	}

	key := Key("part_1", "data", 1)
	l1 := cache.GetOrCreate(key, factory)
	l2 := cache.GetOrCreate(key, factory)

	if l1 != l2 {
		t.Error("same key should return the shared loader")
	}
	if created != 1 {
		t.Errorf("factory called %d times, want 1", created)
	}

	hits, misses := cache.Stats()
	if hits != 1 || misses != 1 {
		t.Errorf("stats = %d hits, %d misses; want 1, 1", hits, misses)
	}
}

func TestCacheConcurrentGetOrCreate(t *testing.T) {
	path := writeTestMarks(t, 1, [][]Mark{{{OffsetInCompressedFile: 9}}})
	cache := NewCache(0)
	key := Key("p", "data", 1)

	var wg sync.WaitGroup
	loaders := make([]*Loader, 16)
	for i := 0; i < 16; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			loaders[i] = cache.GetOrCreate(key, func() *Loader {
				return NewLoader(path, 1, 1)
			})
		}()
	}
	wg.Wait()

	for i := 1; i < 16; i++ {
		if loaders[i] != loaders[0] {
			t.Fatal("concurrent callers should share one loader")
		}
	}
	if cache.Len() != 1 {
		t.Errorf("cache has %d entries, want 1", cache.Len())
	}
}

func TestCacheEviction(t *testing.T) {
	// Each loader accounts 16 bytes (1 granule, width 1); budget fits two.
	cache := NewCache(32)
	dir := t.TempDir()

	for i, name := range []string{"a", "b", "c"} {
		path := filepath.Join(dir, name+".mrk")
		if err := WriteFile(path, [][]Mark{{{OffsetInCompressedFile: uint64(i)}}}, 1); err != nil {
			t.Fatal(err)
		}
		cache.GetOrCreate(Key("p", name, 1), func() *Loader {
			return NewLoader(path, 1, 1)
		})
	}

	if cache.Len() != 2 {
		t.Errorf("cache has %d entries after eviction, want 2", cache.Len())
	}
	if cache.SizeBytes() != 32 {
		t.Errorf("cache size = %d, want 32", cache.SizeBytes())
	}
}
