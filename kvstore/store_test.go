package kvstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	_, ok, err := s.Get(ctx, "university_private_key")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Set(ctx, "university_private_key", "0xabc"))
	require.NoError(t, s.Set(ctx, "student_credentials", "[]"))

	v, ok, err := s.Get(ctx, "university_private_key")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "0xabc", v)

	require.NoError(t, s.Set(ctx, "university_private_key", "0xdef"))
	v, _, err = s.Get(ctx, "university_private_key")
	require.NoError(t, err)
	assert.Equal(t, "0xdef", v)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, s.Set(ctx, fmt.Sprintf("k%d", i), "v"))
		}(i)
	}
	wg.Wait()

	for i := 0; i < 10; i++ {
		_, ok, err := s.Get(ctx, fmt.Sprintf("k%d", i))
		require.NoError(t, err)
		assert.True(t, ok)
	}
}

func TestMemory(t *testing.T) {
	testStore(t, NewMemory())
}

func TestFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "store.json")
	s, err := NewFile(path)
	require.NoError(t, err)

	testStore(t, s)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	reopened, err := NewFile(path)
	require.NoError(t, err)
	v, ok, err := reopened.Get(context.Background(), "university_private_key")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "0xdef", v)
}

func TestFileCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	s, err := NewFile(path)
	require.NoError(t, err)

	_, _, err = s.Get(context.Background(), "k")
	require.Error(t, err)
	require.Error(t, s.Set(context.Background(), "k", "v"))
}

func TestNewFileRequiresPath(t *testing.T) {
	_, err := NewFile("")
	require.Error(t, err)
}
