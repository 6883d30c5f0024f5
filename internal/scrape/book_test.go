package scrape

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const bookPage = `<!DOCTYPE html>
<html>
<head>
  <title>Titre X | ICI OHdio</title>
  <meta property="og:description" content="Une grande aventure pour les petits, racontée avec tendresse.">
  <meta property="og:image" content="/img/cover.jpg">
</head>
<body>
  <h1>Titre X</h1>
  <p class="animator">Écrit par Jane Doe</p>
  <p>Lu par Marc Tremblay</p>
  <p>Durée: 2h 15min</p>
  <script>window.player = {"mediaId":"1234567"};</script>
</body>
</html>`

// testExtractor wires a page server and a validation API server into
// one Extractor.
func testExtractor(t *testing.T, page string, api http.HandlerFunc) (*Extractor, *httptest.Server) {
	t.Helper()

	pageSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/img/") {
			w.Write([]byte("fake-image-bytes"))
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(page))
	}))
	t.Cleanup(pageSrv.Close)

	apiSrv := httptest.NewServer(api)
	t.Cleanup(apiSrv.Close)

	client := newTestFetcher()
	resolver := NewResolver(client, nil)
	resolver.apiURL = apiSrv.URL + "/"
	return NewExtractor(client, resolver, nil), pageSrv
}

func TestExtract_HappyPath(t *testing.T) {
	e, pageSrv := testExtractor(t, bookPage, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"url":"https://cdn.example.com/master.m3u8"}`))
	})

	md, err := e.Extract(context.Background(), pageSrv.URL+"/ohdio/livres-audio/123/titre-x")
	require.NoError(t, err)

	assert.Equal(t, "Titre X", md.Title, "site suffix must be stripped")
	assert.Equal(t, "Jane Doe", md.Author)
	assert.Equal(t, "https://cdn.example.com/master.m3u8", md.PlaylistURL)
	assert.Equal(t, "fr", md.Language)
	assert.Equal(t, "Jeunesse", md.Genre)
	assert.Equal(t, "Une grande aventure pour les petits, racontée avec tendresse.", md.Description)
	assert.Equal(t, "2h 15min", md.Duration)
	assert.Equal(t, "Marc Tremblay", md.Narrator)
	assert.Equal(t, pageSrv.URL+"/img/cover.jpg", md.ThumbnailURL)
	assert.Equal(t, []byte("fake-image-bytes"), md.ThumbnailData)
	assert.True(t, md.Complete())
}

func TestExtract_MissingAuthorFails(t *testing.T) {
	page := `<html><body><h1>Titre sans auteur</h1></body></html>`
	e, pageSrv := testExtractor(t, page, func(w http.ResponseWriter, r *http.Request) {})

	_, err := e.Extract(context.Background(), pageSrv.URL+"/livre")
	assert.ErrorIs(t, err, ErrMetadataIncomplete)
}

func TestExtract_PlaylistFailureIsNonFatal(t *testing.T) {
	page := `<html><body>
<h1>Titre Y</h1>
<p>Écrit par Jane Doe</p>
</body></html>`
	e, pageSrv := testExtractor(t, page, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no media id on page, API must not be called")
	})

	md, err := e.Extract(context.Background(), pageSrv.URL+"/livre")
	require.NoError(t, err)
	assert.Equal(t, "Titre Y", md.Title)
	assert.Empty(t, md.PlaylistURL)
}

func TestExtract_PageUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	client := newTestFetcher()
	e := NewExtractor(client, NewResolver(client, nil), nil)
	_, err := e.Extract(context.Background(), srv.URL+"/disparu")
	assert.Error(t, err)
}

func TestCleanTitle(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"Titre X | ICI OHdio", "Titre X"},
		{"Titre X | Radio-Canada", "Titre X"},
		{"Titre X - OHdio", "Titre X"},
		{"Titre X - Livre audio", "Titre X"},
		{"Titre X", "Titre X"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, cleanTitle(tt.input))
	}
}

func TestCleanAuthorPrefix(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"par Jane Doe", "Jane Doe"},
		{"by Jane Doe", "Jane Doe"},
		{"auteur: Jane Doe", "Jane Doe"},
		{"Jane Doe", "Jane Doe"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, cleanAuthorPrefix(tt.input))
	}
}

func parseDoc(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	return doc
}

func TestExtractSeries(t *testing.T) {
	e := &Extractor{}

	tests := []struct {
		name       string
		html       string
		wantSeries string
		wantNumber int
	}{
		{"hash form", `<div class="series">Les aventuriers #3</div>`, "Les aventuriers", 3},
		{"tome form", `<div class="series">Les aventuriers, tome 2</div>`, "Les aventuriers", 2},
		{"volume form", `<div class="series">Les aventuriers volume 5</div>`, "Les aventuriers", 5},
		{"name only", `<div class="series">Les aventuriers</div>`, "Les aventuriers", 0},
		{"no series", `<div></div>`, "", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			series, number := e.extractSeries(parseDoc(t, tt.html))
			assert.Equal(t, tt.wantSeries, series)
			assert.Equal(t, tt.wantNumber, number)
		})
	}
}

func TestExtractDuration_Patterns(t *testing.T) {
	e := &Extractor{}

	tests := []struct {
		name string
		html string
		want string
	}{
		{"selector", `<span class="duration">1h 30min</span>`, "1h 30min"},
		{"hms pattern", `<p>Le fichier dure 1:23:45 au total.</p>`, "1:23:45"},
		{"hmin pattern", `<p>2h 15min de lecture</p>`, "2h 15min"},
		{"none", `<p>rien</p>`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := parseDoc(t, tt.html)
			assert.Equal(t, tt.want, e.extractDuration(doc, doc.Text()))
		})
	}
}
