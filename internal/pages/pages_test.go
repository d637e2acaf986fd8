package pages

import (
	"encoding/xml"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSite(t *testing.T) (*gin.Engine, *Handler) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	h, err := NewHandler("https://example.test/")
	require.NoError(t, err)
	r := gin.New()
	require.NoError(t, h.RegisterRoutes(r))
	return r, h
}

func get(r http.Handler, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestLoadCatalog(t *testing.T) {
	pages, err := LoadCatalog()
	require.NoError(t, err)
	assert.Len(t, pages, 17)
	assert.Equal(t, "/about/", pages[0].Path)
}

func TestIndex(t *testing.T) {
	r, _ := newSite(t)
	w := get(r, "/")
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, `id="generator-form"`)
	assert.Contains(t, body, `value="emotional"`)
	assert.Contains(t, body, "Harry Potter")
	assert.Contains(t, body, `href="https://example.test/"`)
}

func TestContentPages(t *testing.T) {
	r, h := newSite(t)
	for _, p := range h.Pages() {
		w := get(r, p.Path)
		assert.Equal(t, http.StatusOK, w.Code, p.Path)
		assert.Contains(t, w.Body.String(), "<h1>"+p.Title+"</h1>", p.Path)
	}
}

func TestTrailingSlashRedirect(t *testing.T) {
	r, _ := newSite(t)
	w := get(r, "/about")
	assert.Equal(t, http.StatusMovedPermanently, w.Code)
	assert.Equal(t, "/about/", w.Header().Get("Location"))
}

func TestNotFound(t *testing.T) {
	r, _ := newSite(t)
	w := get(r, "/does-not-exist/")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "Page not found")

	w = get(r, "/api/nope/")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"error":"not found"}`, w.Body.String())
}

func TestRobots(t *testing.T) {
	r, _ := newSite(t)
	w := get(r, "/robots.txt")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "User-agent: *\nAllow: /\nDisallow: /admin/\nDisallow: /api/\nSitemap: https://example.test/sitemap.xml\n", w.Body.String())
	assert.Contains(t, w.Header().Get("Content-Type"), "text/plain")
}

func TestSitemap(t *testing.T) {
	r, h := newSite(t)
	w := get(r, "/sitemap.xml")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/xml", w.Header().Get("Content-Type"))

	var set urlset
	require.NoError(t, xml.Unmarshal(w.Body.Bytes(), &set))
	require.Len(t, set.URLs, len(h.Pages())+1)
	assert.Equal(t, "https://example.test/", set.URLs[0].Loc)
	assert.Equal(t, "1.0", set.URLs[0].Priority)
	assert.Equal(t, "https://example.test/about/", set.URLs[1].Loc)
	assert.Equal(t, "0.5", set.URLs[1].Priority)
	assert.Equal(t, "monthly", set.URLs[1].ChangeFreq)
}

func TestStatic(t *testing.T) {
	r, _ := newSite(t)
	w := get(r, "/static/js/main.js")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "/api/generate/")
}
