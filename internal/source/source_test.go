package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/listing-recon/internal/config"
	"github.com/sells-group/listing-recon/internal/fieldmap"
	"github.com/sells-group/listing-recon/internal/resilience"
	"github.com/sells-group/listing-recon/pkg/listing"
)

func daftSource(t *testing.T) fieldmap.Source {
	t.Helper()
	src := fieldmap.Default().Source("daft")
	require.NotNil(t, src)
	return *src
}

func fastRetry() resilience.RetryConfig {
	return resilience.RetryConfig{MaxAttempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond}
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	assert.Empty(t, r.List())
	assert.Nil(t, r.Get("daft"))

	src := daftSource(t)
	r.Register(NewFixture(src, nil))
	mh := *fieldmap.Default().Source("myhome")
	r.Register(NewFixture(mh, nil))

	assert.Equal(t, []string{"daft", "myhome"}, r.List())
	assert.Equal(t, "daft", r.Get("daft").Name())
}

func TestREST_SearchByAddress(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "12 Orchard Lane", r.URL.Query().Get("address"))
		w.Write([]byte(`{"results":[{"id":1234567,"title":"12 Orchard Lane, Ranelagh","price":450000},null]}`))
	}))
	defer srv.Close()

	a := NewREST(daftSource(t), listing.NewClient(srv.URL, "k"), WithRetry(fastRetry()))
	got, err := a.SearchByAddress(context.Background(), "12 Orchard Lane")

	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "daft", got[0].Source)
	assert.Equal(t, "1234567", got[0].ID)
	assert.Equal(t, "12 Orchard Lane, Ranelagh", got[0].DisplayAddress)
	assert.Equal(t, float64(450000), got[0].Fields["price"])
	assert.Equal(t, "closed", a.BreakerState())
}

func TestREST_RetriesTransientStatus(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"results":[]}`))
	}))
	defer srv.Close()

	a := NewREST(daftSource(t), listing.NewClient(srv.URL, "k"), WithRetry(fastRetry()))
	got, err := a.SearchByAddress(context.Background(), "x")

	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Equal(t, int32(2), calls.Load())
}

func TestREST_DoesNotRetryClientError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	a := NewREST(daftSource(t), listing.NewClient(srv.URL, "bad"), WithRetry(fastRetry()))
	_, err := a.SearchByAddress(context.Background(), "x")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
	assert.Equal(t, int32(1), calls.Load())
}

func TestREST_BreakerOpens(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	a := NewREST(daftSource(t), listing.NewClient(srv.URL, "k"),
		WithRetry(fastRetry()),
		WithBreaker(resilience.BreakerConfig{FailureThreshold: 2, ResetTimeout: time.Minute}),
	)
	for i := 0; i < 3; i++ {
		_, err := a.SearchByAddress(context.Background(), "x")
		require.Error(t, err)
	}
	assert.Equal(t, "open", a.BreakerState())
	assert.Equal(t, int32(2), calls.Load())
}

func TestREST_GetByID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/listings/d-1" {
			w.Write([]byte(`{"id":"d-1","title":"12 Orchard Lane"}`))
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	a := NewREST(daftSource(t), listing.NewClient(srv.URL, "k"))

	c, err := a.GetByID(context.Background(), "d-1")
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, "d-1", c.ID)

	c, err = a.GetByID(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, c)
}

func TestFixture(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "daft.json")
	require.NoError(t, os.WriteFile(path, []byte(`[
		{"id": "d-1", "title": "12 Orchard Lane", "price": 450000},
		{"id": "d-2", "title": "14 Orchard Lane", "price": 470000}
	]`), 0o644))

	fx, err := LoadFixture(daftSource(t), path)
	require.NoError(t, err)

	got, err := fx.SearchByAddress(context.Background(), "anything")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "14 Orchard Lane", got[1].DisplayAddress)

	c, err := fx.GetByID(context.Background(), "d-2")
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, float64(470000), c.Fields["price"])

	c, err = fx.GetByID(context.Background(), "d-9")
	require.NoError(t, err)
	assert.Nil(t, c)

	_, err = LoadFixture(daftSource(t), filepath.Join(dir, "missing.json"))
	require.Error(t, err)
}

func TestFixture_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewFixture(daftSource(t), nil).SearchByAddress(ctx, "x")
	require.Error(t, err)
}

func TestBuild(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "myhome.json")
	require.NoError(t, os.WriteFile(path, []byte(`[]`), 0o644))

	reg, err := Build(fieldmap.Default(), map[string]config.SourceConfig{
		"daft":        {BaseURL: "https://api.daft.test", TimeoutSecs: 3},
		"myhome":      {Fixture: path},
		"propertypal": {APIKey: "unused"},
		"crm":         {BaseURL: "https://ignored"},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"daft", "myhome"}, reg.List())
	assert.IsType(t, &REST{}, reg.Get("daft"))
	assert.IsType(t, &Fixture{}, reg.Get("myhome"))
	assert.Nil(t, reg.Get("propertypal"))
}

func TestBuild_BadFixture(t *testing.T) {
	_, err := Build(fieldmap.Default(), map[string]config.SourceConfig{
		"daft": {Fixture: filepath.Join(t.TempDir(), "nope.json")},
	})
	require.Error(t, err)
}

func TestTimeouts(t *testing.T) {
	got := Timeouts(map[string]config.SourceConfig{"daft": {TimeoutSecs: 3}, "myhome": {}})
	assert.Equal(t, 3*time.Second, got["daft"])
	assert.Equal(t, config.DefaultSourceTimeout, got["myhome"])
}
