package scrape

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ohdiodl/internal/fetch"
	"ohdiodl/internal/model"
)

func newTestFetcher() *fetch.Client {
	return fetch.NewClient(fetch.Options{
		MaxRetries: 0,
		BaseDelay:  time.Millisecond,
		Timeout:    5 * time.Second,
	}, nil)
}

func serveHTML(t *testing.T, html string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(html))
	}))
	t.Cleanup(srv.Close)
	return srv
}

const gridCatalogPage = `<!DOCTYPE html>
<html><body>
<div class="index-grid-item">
  <a href="/ohdio/livres-audio/123/le-voyage"><span class="text">Le voyage fantastique</span></a>
  <p>par Jane Doe</p>
</div>
<div class="index-grid-item">
  <a href="/ohdio/livres-audio/456/la-foret"><span class="text">La forêt mystérieuse</span></a>
</div>
<a href="/ohdio/balados/999/un-balado">Pas un livre</a>
</body></html>`

func TestDiscover_GridItems(t *testing.T) {
	srv := serveHTML(t, gridCatalogPage)

	d := NewDiscoverer(newTestFetcher(), nil)
	entries, err := d.Discover(context.Background(), srv.URL+"/ohdio/categories/1003592/jeunesse")
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, "Le voyage fantastique", entries[0].Title)
	assert.Equal(t, "Jane Doe", entries[0].Author)
	assert.Equal(t, srv.URL+"/ohdio/livres-audio/123/le-voyage", entries[0].URL,
		"relative hrefs must resolve against the category URL")

	assert.Equal(t, "La forêt mystérieuse", entries[1].Title)
	assert.Equal(t, model.UnknownAuthor, entries[1].Author)
}

func TestDiscover_DeduplicatesAcrossStrategies(t *testing.T) {
	// The same book appears both in a grid item and as a bare link.
	// The grid strategy runs first, so its entry wins.
	page := `<html><body>
<div class="index-grid-item">
  <a href="/ohdio/livres-audio/123/le-voyage"><span class="text">Le voyage fantastique</span></a>
</div>
<a href="/ohdio/livres-audio/123/le-voyage">Le voyage fantastique (lien direct)</a>
</body></html>`
	srv := serveHTML(t, page)

	d := NewDiscoverer(newTestFetcher(), nil)
	entries, err := d.Discover(context.Background(), srv.URL)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "Le voyage fantastique", entries[0].Title)
}

func TestDiscover_GenericLinksFallback(t *testing.T) {
	page := `<html><body>
<a href="/ohdio/livres-audio/789/conte" title="Le conte du nord">lien</a>
</body></html>`
	srv := serveHTML(t, page)

	d := NewDiscoverer(newTestFetcher(), nil)
	entries, err := d.Discover(context.Background(), srv.URL)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "Le conte du nord", entries[0].Title)
}

func TestDiscover_EmptyPage(t *testing.T) {
	srv := serveHTML(t, `<html><body><p>rien ici</p></body></html>`)

	d := NewDiscoverer(newTestFetcher(), nil)
	entries, err := d.Discover(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestDiscover_FetchFailureReturnsEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	d := NewDiscoverer(newTestFetcher(), nil)
	entries, err := d.Discover(context.Background(), srv.URL)
	require.NoError(t, err, "unreachable catalog is not an error, just empty")
	assert.Empty(t, entries)
}

func TestDiscover_ThumbnailResolved(t *testing.T) {
	page := `<html><body>
<div class="index-grid-item">
  <a href="/ohdio/livres-audio/123/le-voyage">
    <span class="text">Le voyage fantastique</span>
    <img data-src="/img/cover123.jpg">
  </a>
</div>
</body></html>`
	srv := serveHTML(t, page)

	d := NewDiscoverer(newTestFetcher(), nil)
	entries, err := d.Discover(context.Background(), srv.URL)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, srv.URL+"/img/cover123.jpg", entries[0].ThumbnailURL)
}

func TestDedupeByURL_FirstWins(t *testing.T) {
	entries := []model.CatalogEntry{
		{Title: "A", URL: "https://x/1"},
		{Title: "B", URL: "https://x/2"},
		{Title: "A encore", URL: "https://x/1"},
	}
	unique := dedupeByURL(entries)
	require.Len(t, unique, 2)
	assert.Equal(t, "A", unique[0].Title)
	assert.Equal(t, "B", unique[1].Title)
}
