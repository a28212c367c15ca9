package metrics

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRequiresRegisterer(t *testing.T) {
	t.Parallel()

	_, err := New(nil)
	assert.Error(t, err)
}

func TestNewRejectsDuplicateRegistration(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	_, err := New(reg)
	require.NoError(t, err)
	_, err = New(reg)
	assert.Error(t, err)
}

func TestCollectorsRecord(t *testing.T) {
	t.Parallel()

	c, err := New(prometheus.NewRegistry())
	require.NoError(t, err)

	c.ObserveStage("jina", nil, 200*time.Millisecond)
	c.ObserveStage("jina", errors.New("boom"), time.Second)
	c.ObserveStage("wayback", nil, time.Second)
	c.CacheLookup(LookupHit)
	c.CacheLookup(LookupHit)
	c.CacheLookup(LookupStale)
	c.URLOutcome(OutcomeFetched)
	c.URLOutcome(OutcomeFailed)
	c.CacheWriteError()
	c.ObserveRateLimitDelay("r.jina.ai", 3*time.Second)

	assert.InDelta(t, 1, testutil.ToFloat64(c.stageAttempts.WithLabelValues("jina", "success")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(c.stageAttempts.WithLabelValues("jina", "failure")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(c.stageAttempts.WithLabelValues("wayback", "success")), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(c.cacheLookups.WithLabelValues(LookupHit)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(c.cacheLookups.WithLabelValues(LookupStale)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(c.urlsTotal.WithLabelValues(OutcomeFailed)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(c.cacheWriteErrors), 0)
	assert.Equal(t, 2, testutil.CollectAndCount(c.stageDuration))
	assert.Equal(t, 1, testutil.CollectAndCount(c.rateLimitDelay))
}

func TestNilCollectorsAreNoOps(t *testing.T) {
	t.Parallel()

	var c *Collectors
	assert.NotPanics(t, func() {
		c.ObserveStage("jina", nil, time.Second)
		c.CacheLookup(LookupMiss)
		c.URLOutcome(OutcomeFetched)
		c.CacheWriteError()
		c.ObserveRateLimitDelay("host", time.Second)
	})
}

func TestWriteTextfile(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	c, err := New(reg)
	require.NoError(t, err)
	c.URLOutcome(OutcomeFetched)

	path := filepath.Join(t.TempDir(), "fetch.prom")
	require.NoError(t, WriteTextfile(reg, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), `research_fetcher_urls_total{outcome="fetched"} 1`))

	err = WriteTextfile(reg, filepath.Join(t.TempDir(), "missing", "fetch.prom"))
	assert.Error(t, err)
}
