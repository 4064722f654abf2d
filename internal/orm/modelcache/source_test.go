package modelcache

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduit-lang/entityframe/internal/orm/metadata"
	"github.com/conduit-lang/entityframe/pkg/model"
)

type Product struct {
	ID   int64
	Name string
}

func buildProducts() (*metadata.Model, error) {
	mb := model.NewModelBuilder()
	model.Entity[Product](mb)
	return mb.Build()
}

func TestSource_GetModel(t *testing.T) {
	source := NewSource(nil)

	var builds int32
	build := func() (*metadata.Model, error) {
		atomic.AddInt32(&builds, 1)
		return buildProducts()
	}

	first, err := source.GetModel("products", build)
	require.NoError(t, err)
	require.NotNil(t, first.FindEntityType("Product"))

	second, err := source.GetModel("products", build)
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, int32(1), atomic.LoadInt32(&builds))
	assert.Equal(t, 1, source.Len())

	source.Invalidate("products")
	assert.Zero(t, source.Len())

	third, err := source.GetModel("products", build)
	require.NoError(t, err)
	assert.NotSame(t, first, third)
	assert.Equal(t, int32(2), atomic.LoadInt32(&builds))
}

func TestSource_ConcurrentBuildsShareResult(t *testing.T) {
	source := NewSource(nil)

	var builds int32
	release := make(chan struct{})
	build := func() (*metadata.Model, error) {
		atomic.AddInt32(&builds, 1)
		<-release
		return buildProducts()
	}

	const workers = 8
	results := make([]*metadata.Model, workers)
	var wg sync.WaitGroup
	var started sync.WaitGroup
	started.Add(workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			started.Done()
			m, err := source.GetModel("products", build)
			assert.NoError(t, err)
			results[i] = m
		}(i)
	}
	started.Wait()
	close(release)
	wg.Wait()

	for _, m := range results {
		assert.Same(t, results[0], m)
	}
	assert.Equal(t, 1, source.Len())
}

func TestSource_BuildError(t *testing.T) {
	source := NewSource(nil)
	boom := errors.New("boom")

	_, err := source.GetModel("broken", func() (*metadata.Model, error) { return nil, boom })
	assert.ErrorIs(t, err, boom)
	assert.Zero(t, source.Len(), "failed builds are not cached")

	_, err = source.GetModel("empty", func() (*metadata.Model, error) { return nil, nil })
	assert.ErrorContains(t, err, "build returned no model")

	m, err := source.GetModel("broken", buildProducts)
	require.NoError(t, err)
	assert.NotNil(t, m)
}
