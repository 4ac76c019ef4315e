package state

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingObserver struct {
	mu      sync.Mutex
	hits    int
	misses  int
	evicted int
}

func (o *countingObserver) CacheHit(string) {
	o.mu.Lock()
	o.hits++
	o.mu.Unlock()
}

func (o *countingObserver) CacheMiss(string) {
	o.mu.Lock()
	o.misses++
	o.mu.Unlock()
}

func (o *countingObserver) CacheEvict(_ string, n int) {
	o.mu.Lock()
	o.evicted += n
	o.mu.Unlock()
}

func TestLoad_CachesByVersion(t *testing.T) {
	t.Parallel()

	obs := &countingObserver{}
	c := NewCache(obs)
	key := Key{Name: "a.csv", Op: "summary", Params: "TEMPERATURE"}

	calls := 0
	compute := func() (int, error) {
		calls++
		return calls * 10, nil
	}

	v, err := Load(c, key, "v1", compute)
	require.NoError(t, err)
	assert.Equal(t, 10, v)

	v, err = Load(c, key, "v1", compute)
	require.NoError(t, err)
	assert.Equal(t, 10, v)
	assert.Equal(t, 1, calls)

	v, err = Load(c, key, "v2", compute)
	require.NoError(t, err)
	assert.Equal(t, 20, v)
	assert.Equal(t, 2, calls)

	assert.Equal(t, 1, obs.hits)
	assert.Equal(t, 2, obs.misses)
	assert.Equal(t, 1, obs.evicted)
}

func TestLoad_StaleVersionDropsWholeSource(t *testing.T) {
	t.Parallel()

	c := NewCache(nil)
	one := func() (int, error) { return 1, nil }

	_, _ = Load(c, Key{Name: "a.csv", Op: "summary"}, "v1", one)
	_, _ = Load(c, Key{Name: "a.csv", Op: "boxplot"}, "v1", one)
	_, _ = Load(c, Key{Name: "b.csv", Op: "summary"}, "v1", one)
	require.Equal(t, 3, c.Len())

	_, err := Load(c, Key{Name: "a.csv", Op: "summary"}, "v2", one)
	require.NoError(t, err)

	// a.csv boxplot is gone, b.csv is untouched.
	assert.Equal(t, 2, c.Len())
}

func TestLoad_ParamsAreDistinctEntries(t *testing.T) {
	t.Parallel()

	c := NewCache(nil)
	_, _ = Load(c, Key{Name: "a.csv", Op: "summary", Params: "TEMPERATURE"}, "v1", func() (string, error) { return "t", nil })
	v, err := Load(c, Key{Name: "a.csv", Op: "summary", Params: "HUMIDITY"}, "v1", func() (string, error) { return "h", nil })
	require.NoError(t, err)

	assert.Equal(t, "h", v)
	assert.Equal(t, 2, c.Len())
}

func TestLoad_ErrorsAreNotCached(t *testing.T) {
	t.Parallel()

	c := NewCache(nil)
	key := Key{Name: "a.csv", Op: "summary"}
	boom := errors.New("boom")

	_, err := Load(c, key, "v1", func() (int, error) { return 0, boom })
	require.ErrorIs(t, err, boom)
	assert.Zero(t, c.Len())

	v, err := Load(c, key, "v1", func() (int, error) { return 7, nil })
	require.NoError(t, err)
	assert.Equal(t, 7, v)
}

func TestLoad_EmptyVersionBypassesCache(t *testing.T) {
	t.Parallel()

	c := NewCache(nil)
	calls := 0
	for i := 0; i < 3; i++ {
		_, err := Load(c, Key{Name: "a.csv", Op: "summary"}, "", func() (int, error) {
			calls++
			return calls, nil
		})
		require.NoError(t, err)
	}

	assert.Equal(t, 3, calls)
	assert.Zero(t, c.Len())
}

func TestLoad_ConcurrentCallersShareOneComputation(t *testing.T) {
	t.Parallel()

	c := NewCache(nil)
	key := Key{Name: "big.csv", Op: "correlation"}

	var calls atomic.Int32
	release := make(chan struct{})

	var wg sync.WaitGroup
	results := make([]int, 8)
	for i := range results {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := Load(c, key, "v1", func() (int, error) {
				calls.Add(1)
				<-release
				return 42, nil
			})
			assert.NoError(t, err)
			results[i] = v
		}()
	}

	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, v := range results {
		assert.Equal(t, 42, v)
	}
}

func TestEvict(t *testing.T) {
	t.Parallel()

	obs := &countingObserver{}
	c := NewCache(obs)
	one := func() (int, error) { return 1, nil }

	_, _ = Load(c, Key{Name: "a.csv", Op: "dataset"}, "v1", one)
	_, _ = Load(c, Key{Name: "a.csv", Op: "summary"}, "v1", one)
	_, _ = Load(c, Key{Name: "b.csv", Op: "dataset"}, "v1", one)

	assert.Equal(t, 2, c.Evict("a.csv"))
	assert.Equal(t, 1, c.Len())
	assert.Zero(t, c.Evict("a.csv"))
	assert.Equal(t, 2, obs.evicted)
}

func TestKeyString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "a.csv|summary|TEMP", Key{Name: "a.csv", Op: "summary", Params: "TEMP"}.String())
}
