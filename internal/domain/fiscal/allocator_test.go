package fiscal

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hugohenrick/nfse-emissor/internal/lock"
)

// memorySequence simula o contador sem atomicidade própria, de modo que a
// exclusão mútua depende apenas do Locker.
type memorySequence struct {
	values map[string]int64
	seed   map[string]int64
}

func (m *memorySequence) NextNumber(_ context.Context, tenantID string) (int64, error) {
	cur, ok := m.values[tenantID]
	if !ok {
		cur = m.seed[tenantID]
	}
	cur++
	m.values[tenantID] = cur
	return cur, nil
}

func TestAllocator_ConcurrentUniqueAndIncreasing(t *testing.T) {
	repo := &memorySequence{values: map[string]int64{}, seed: map[string]int64{"t1": 41}}
	a := NewAllocator(repo, lock.NewMemoryLocker())

	const workers = 100
	results := make([]string, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			n, err := a.NextNumber(context.Background(), "t1")
			assert.NoError(t, err)
			results[i] = n
		}(i)
	}
	wg.Wait()

	sort.Strings(results)
	seen := map[string]bool{}
	for i, n := range results {
		assert.False(t, seen[n], "número duplicado %s", n)
		seen[n] = true
		assert.Len(t, n, NumberWidth)
		if i > 0 {
			assert.Greater(t, ParseNumber(n), ParseNumber(results[i-1]))
		}
	}
	assert.Equal(t, "000042", results[0])
	assert.Equal(t, "000141", results[workers-1])
}

func TestAllocator_SequentialCallsStrictlyIncrease(t *testing.T) {
	a := NewAllocator(&memorySequence{values: map[string]int64{}, seed: map[string]int64{}}, nil)

	prev := int64(0)
	for i := 0; i < 10; i++ {
		n, err := a.NextNumber(context.Background(), "t1")
		require.NoError(t, err)
		assert.Greater(t, ParseNumber(n), prev)
		prev = ParseNumber(n)
	}
}

type failingSequence struct{}

func (failingSequence) NextNumber(context.Context, string) (int64, error) {
	return 0, errors.New("conexão recusada")
}

func TestAllocator_Errors(t *testing.T) {
	a := NewAllocator(failingSequence{}, nil)

	_, err := a.NextNumber(context.Background(), "")
	assert.Error(t, err)

	_, err = a.NextNumber(context.Background(), "t1")
	assert.ErrorContains(t, err, "conexão recusada")
}

func TestNumberHelpers(t *testing.T) {
	assert.Equal(t, "000007", FormatNumber(7))
	assert.Equal(t, "1234567", FormatNumber(1234567))

	cases := map[string]int64{"": 0, "  ": 0, "abc": 0, "000012": 12, "-3": 0, "12a": 0}
	for in, want := range cases {
		assert.Equal(t, want, ParseNumber(in), "entrada %q", in)
	}

	assert.Equal(t, int64(15), MaxNumber([]string{"000003", "", "x", "000015", "9"}))
	assert.Equal(t, int64(0), MaxNumber(nil))
	assert.Equal(t, "2", Homologation.TpAmb())
	assert.Equal(t, "1", Production.TpAmb())
}
