package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/duskline/reconforge/internal/record"
)

func newBackends(t *testing.T) map[string]Store {
	mem, err := NewMemoryStore(100)
	require.NoError(t, err)

	dir := t.TempDir()
	file, err := NewFileStore(dir)
	require.NoError(t, err)

	return map[string]Store{
		"memory": mem,
		"file":   file,
	}
}

func TestStore_MissOnUnknownKey(t *testing.T) {
	for name, s := range newBackends(t) {
		t.Run(name, func(t *testing.T) {
			_, ok, err := s.Get(context.Background(), "example.com", "dns", time.Hour)
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestStore_PutThenGetWithinTTLHits(t *testing.T) {
	for name, s := range newBackends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			rec := record.New("dns", "example.com", record.TypeDomain)
			require.NoError(t, s.Put(ctx, "example.com", "dns", rec, time.Hour))

			entry, ok, err := s.Get(ctx, "example.com", "dns", time.Hour)
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, "example.com", entry.Target)
			assert.Equal(t, "dns", entry.Provider)
		})
	}
}

func TestStore_ExpiredEntryIsAMiss(t *testing.T) {
	for name, s := range newBackends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			rec := record.New("dns", "example.com", record.TypeDomain)
			require.NoError(t, s.Put(ctx, "example.com", "dns", rec, time.Hour))

			// A maxAge of 0 disables the freshness check (see
			// Entry.Expired), so use a tiny positive maxAge and sleep past
			// it to make the entry stale.
			time.Sleep(5 * time.Millisecond)
			_, ok, err := s.Get(ctx, "example.com", "dns", 1*time.Millisecond)
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestStore_ZeroMaxAgeNeverExpires(t *testing.T) {
	for name, s := range newBackends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			rec := record.New("dns", "example.com", record.TypeDomain)
			require.NoError(t, s.Put(ctx, "example.com", "dns", rec, time.Hour))
			time.Sleep(2 * time.Millisecond)

			_, ok, err := s.Get(ctx, "example.com", "dns", 0)
			require.NoError(t, err)
			assert.True(t, ok)
		})
	}
}

func TestStore_InvalidateRemovesEntry(t *testing.T) {
	for name, s := range newBackends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			rec := record.New("dns", "example.com", record.TypeDomain)
			require.NoError(t, s.Put(ctx, "example.com", "dns", rec, time.Hour))
			require.NoError(t, s.Invalidate(ctx, "example.com", "dns"))

			_, ok, err := s.Get(ctx, "example.com", "dns", time.Hour)
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestStore_InvalidateMissingKeyIsNotAnError(t *testing.T) {
	for name, s := range newBackends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.Invalidate(context.Background(), "nowhere.com", "dns"))
		})
	}
}

func TestStore_ClearWithPatternOnlyRemovesMatching(t *testing.T) {
	for name, s := range newBackends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, s.Put(ctx, "a.com", "dns", record.New("dns", "a.com", record.TypeDomain), time.Hour))
			require.NoError(t, s.Put(ctx, "b.com", "dns", record.New("dns", "b.com", record.TypeDomain), time.Hour))

			require.NoError(t, s.Clear(ctx, "a.com"))

			_, ok, _ := s.Get(ctx, "a.com", "dns", time.Hour)
			assert.False(t, ok)
			_, ok, _ = s.Get(ctx, "b.com", "dns", time.Hour)
			assert.True(t, ok)
		})
	}
}

func TestStore_ClearWithEmptyPatternRemovesEverything(t *testing.T) {
	for name, s := range newBackends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, s.Put(ctx, "a.com", "dns", record.New("dns", "a.com", record.TypeDomain), time.Hour))
			require.NoError(t, s.Clear(ctx, ""))
			assert.Equal(t, 0, s.Stats().Entries)
		})
	}
}

func TestStore_PutOverwritesExistingEntry(t *testing.T) {
	for name, s := range newBackends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			r1 := record.New("dns", "example.com", record.TypeDomain)
			r1.Resolved.IP.Add("1.1.1.1")
			require.NoError(t, s.Put(ctx, "example.com", "dns", r1, time.Hour))

			r2 := record.New("dns", "example.com", record.TypeDomain)
			r2.Resolved.IP.Add("2.2.2.2")
			require.NoError(t, s.Put(ctx, "example.com", "dns", r2, time.Hour))

			entry, ok, err := s.Get(ctx, "example.com", "dns", time.Hour)
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, []string{"2.2.2.2"}, entry.Record.Resolved.IP.Values())
		})
	}
}

func TestFileStore_CorruptFileIsAMissNotAnError(t *testing.T) {
	dir := t.TempDir()
	f, err := NewFileStore(dir)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, f.Put(ctx, "example.com", "dns", record.New("dns", "example.com", record.TypeDomain), time.Hour))

	fp := key("example.com", "dns")
	require.NoError(t, os.WriteFile(f.path(fp), []byte("{not valid json"), 0o644))

	_, ok, err := f.Get(ctx, "example.com", "dns", time.Hour)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFileStore_SurvivesReopenAcrossProcesses(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	f1, err := NewFileStore(dir)
	require.NoError(t, err)
	require.NoError(t, f1.Put(ctx, "example.com", "dns", record.New("dns", "example.com", record.TypeDomain), time.Hour))

	f2, err := NewFileStore(dir)
	require.NoError(t, err)
	_, ok, err := f2.Get(ctx, "example.com", "dns", time.Hour)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMemoryStore_RespectsBoundedSize(t *testing.T) {
	m, err := NewMemoryStore(2)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, m.Put(ctx, "a.com", "dns", record.New("dns", "a.com", record.TypeDomain), time.Hour))
	require.NoError(t, m.Put(ctx, "b.com", "dns", record.New("dns", "b.com", record.TypeDomain), time.Hour))
	require.NoError(t, m.Put(ctx, "c.com", "dns", record.New("dns", "c.com", record.TypeDomain), time.Hour))

	assert.LessOrEqual(t, m.Stats().Entries, 2)
}
