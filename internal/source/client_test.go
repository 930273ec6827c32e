package source

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_RetriesTransientStatus(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, "<html><body><p>ok</p></body></html>")
	}))
	t.Cleanup(srv.Close)

	doc, err := newTestClient(t).GetDocument(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, "ok", doc.Find("p").Text())
}

func TestClient_NoRetryOnClientError(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(srv.Close)

	_, err := newTestClient(t).GetHTML(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestClient_SendsUserAgent(t *testing.T) {
	var ua string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ua = r.Header.Get("User-Agent")
		fmt.Fprint(w, "<html></html>")
	}))
	t.Cleanup(srv.Close)

	_, err := newTestClient(t).GetHTML(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "scrape-cli-test", ua)
}

type memoryCache struct {
	mu    sync.Mutex
	pages map[string][]byte
	sets  int
}

func newMemoryCache() *memoryCache {
	return &memoryCache{pages: map[string][]byte{}}
}

func (m *memoryCache) GetPage(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pages[key], nil
}

func (m *memoryCache) SetPage(_ context.Context, key string, html []byte, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pages[key] = html
	m.sets++
	return nil
}

func TestClient_UsesCache(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		fmt.Fprint(w, "<html><body>cached page</body></html>")
	}))
	t.Cleanup(srv.Close)

	cache := newMemoryCache()
	client := newTestClient(t, WithCache(cache, time.Hour))

	_, err := client.GetHTML(context.Background(), srv.URL)
	require.NoError(t, err)
	_, err = client.GetHTML(context.Background(), srv.URL)
	require.NoError(t, err)

	assert.Equal(t, 1, calls, "second fetch should hit the cache")
	assert.Equal(t, 1, cache.sets)
}

func TestDecodeCharset(t *testing.T) {
	// "café" in ISO-8859-1.
	latin1 := []byte{'c', 'a', 'f', 0xE9}

	out := decodeCharset(latin1, "text/html; charset=iso-8859-1")
	assert.Equal(t, "café", string(out))

	// UTF-8 and unknown charsets pass through.
	assert.Equal(t, latin1, decodeCharset(latin1, "text/html; charset=utf-8"))
	assert.Equal(t, latin1, decodeCharset(latin1, "text/html; charset=klingon"))
	assert.Equal(t, latin1, decodeCharset(latin1, ""))
}
