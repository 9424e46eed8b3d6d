package server

import (
	"context"
	"encoding/json"
	"marketplace-watcher/models"
	"marketplace-watcher/storage"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// imageHost serves 200 for /ok/* and 404 for anything else.
func imageHost(t *testing.T) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if strings.HasPrefix(r.URL.Path, "/ok/") {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func newTestRouter(t *testing.T, store Store, threshold int) http.Handler {
	t.Helper()
	prober := NewProber(nil, 0, time.Second, zerolog.Nop())
	return NewRouter(NewHandlers(store, prober, threshold), zerolog.Nop())
}

func newStore(t *testing.T) *storage.JSONStore {
	t.Helper()
	return storage.NewJSONStore(filepath.Join(t.TempDir(), "saved_listings.json"), zerolog.Nop())
}

func do(t *testing.T, h http.Handler, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestIndex(t *testing.T) {
	rec := do(t, newTestRouter(t, newStore(t), 1), http.MethodGet, "/")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "/listings/invalid/all")
	assert.NotEmpty(t, rec.Header().Get(traceHeader))
}

func TestGetData_MissingFileIs404(t *testing.T) {
	router := newTestRouter(t, newStore(t), 1)

	assert.Equal(t, http.StatusNotFound, do(t, router, http.MethodGet, "/get/data").Code)
	assert.Equal(t, http.StatusNotFound, do(t, router, http.MethodGet, "/get/data.csv").Code)
}

func TestGetData_ServesFileVerbatim(t *testing.T) {
	store := newStore(t)
	raw := `{"http://x/1":{"price":{"current":"5"},"name":"A","location":"","kilometers":"","url":"http://x/1"}}`
	require.NoError(t, os.WriteFile(store.Path(), []byte(raw), 0o644))

	rec := do(t, newTestRouter(t, store, 1), http.MethodGet, "/get/data")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, raw, rec.Body.String())
}

func TestGetDataCSV(t *testing.T) {
	store := newStore(t)
	require.NoError(t, store.Save(models.Snapshot{"http://x/1": {URL: "http://x/1", Name: "Hilux", Price: models.Price{Current: "30,000"}}}))

	rec := do(t, newTestRouter(t, store, 1), http.MethodGet, "/get/data.csv")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Hilux")
}

func TestPurge_KeepsOnlyLiveCheckedListings(t *testing.T) {
	images, hits := imageHost(t)
	store := newStore(t)
	require.NoError(t, store.Save(models.Snapshot{
		"http://x/1": {URL: "http://x/1", ImageURL: images.URL + "/ok/1.jpg", LastChecked: 1700000000000},
		"http://x/2": {URL: "http://x/2", ImageURL: images.URL + "/gone/2.jpg", LastChecked: 1700000000000},
		"http://x/3": {URL: "http://x/3", ImageURL: images.URL + "/ok/3.jpg"},
	}))

	rec := do(t, newTestRouter(t, store, 1), http.MethodDelete, "/listings/invalid/all")
	require.Equal(t, http.StatusOK, rec.Code)

	var summary PurgeSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	assert.Equal(t, PurgeSummary{Kept: 1, Dropped: 2}, summary)

	snap, err := store.LoadStrict()
	require.NoError(t, err)
	assert.Len(t, snap, 1)
	assert.Contains(t, snap, "http://x/1")
	assert.Equal(t, int32(2), hits.Load(), "unchecked listings are never probed")
}

func TestPurge_ClientHangUpKeepsLiveListings(t *testing.T) {
	images := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(images.Close)

	store := newStore(t)
	require.NoError(t, store.Save(models.Snapshot{
		"http://x/1": {URL: "http://x/1", ImageURL: images.URL + "/1.jpg", LastChecked: 1700000000000},
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodDelete, "/listings/invalid/all", nil).WithContext(ctx)
	rec := httptest.NewRecorder()
	newTestRouter(t, store, 1).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	snap, err := store.LoadStrict()
	require.NoError(t, err)
	assert.Contains(t, snap, "http://x/1", "a slow but live image must survive the sweep")
}

func TestPurge_MissingFileIsOK(t *testing.T) {
	store := newStore(t)
	rec := do(t, newTestRouter(t, store, 1), http.MethodDelete, "/listings/invalid/all")
	assert.Equal(t, http.StatusOK, rec.Code)

	_, err := store.LoadStrict()
	assert.ErrorIs(t, err, storage.ErrNotFound, "purge must not create the file")
}

func TestPurge_CorruptFileIs500(t *testing.T) {
	store := newStore(t)
	require.NoError(t, os.WriteFile(store.Path(), []byte("{broken"), 0o644))

	rec := do(t, newTestRouter(t, store, 1), http.MethodDelete, "/listings/invalid/all")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	data, err := os.ReadFile(store.Path())
	require.NoError(t, err)
	assert.Equal(t, "{broken", string(data))
}

func TestPurge_ThresholdKeepsUntilRepeatedFailures(t *testing.T) {
	images, _ := imageHost(t)
	prober := NewProber(nil, 2, time.Second, zerolog.Nop())
	snap := models.Snapshot{
		"http://x/1": {URL: "http://x/1", ImageURL: images.URL + "/gone/1.jpg", LastChecked: 1},
		"http://x/2": {URL: "http://x/2", ImageURL: images.URL + "/ok/2.jpg", LastChecked: 1, ProbeFailures: 2},
	}

	first, summary := Purge(context.Background(), snap, prober, 2)
	assert.Equal(t, PurgeSummary{Kept: 2, Dropped: 0}, summary)
	assert.Equal(t, 1, first["http://x/1"].ProbeFailures)
	assert.Zero(t, first["http://x/2"].ProbeFailures, "a live probe resets the counter")

	second, summary := Purge(context.Background(), first, prober, 2)
	assert.Equal(t, PurgeSummary{Kept: 1, Dropped: 1}, summary)
	assert.NotContains(t, second, "http://x/1")
}

func TestProber_MissingImageFails(t *testing.T) {
	prober := NewProber(nil, 0, time.Second, zerolog.Nop())
	results := prober.ProbeAll(context.Background(), map[string]models.ListingRecord{"a": {URL: "a"}})

	require.Len(t, results, 1)
	assert.False(t, results[0].Alive())
	assert.ErrorIs(t, results[0].Err, errNoImage)
}

func TestServer_RunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	srv := NewServer(0, NewHandlers(newStore(t), NewProber(nil, 0, time.Second, zerolog.Nop()), 1), zerolog.Nop())

	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
