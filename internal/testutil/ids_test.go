package testutil

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSequentialIDs_Order(t *testing.T) {
	gen := NewSequentialIDs("ehr")

	assert.Equal(t, "ehr-0001", gen.Next())
	assert.Equal(t, "ehr-0002", gen.Generate())

	gen.Reset()
	assert.Equal(t, "ehr-0001", gen.Next())
}

func TestSequentialIDs_DefaultPrefix(t *testing.T) {
	assert.Equal(t, "id-0001", NewSequentialIDs("").Next())
}

func TestSequentialIDs_ThreadSafe(t *testing.T) {
	gen := NewSequentialIDs("x")

	var mu sync.Mutex
	seen := make(map[string]bool)
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				id := gen.Next()
				mu.Lock()
				seen[id] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, 1000)
}

func TestLoadFixture(t *testing.T) {
	ds := LoadFixture(t, "minimal.yaml")

	if assert.Len(t, ds.Records, 3) {
		assert.Equal(t, FixtureEHR1, ds.Records[0].EHR.ID)
		assert.Len(t, ds.Records[0].Compositions, 5)
		assert.Equal(t, FixtureEHR3, ds.Records[2].EHR.ID)
		assert.Empty(t, ds.Records[2].Compositions)
	}
}
