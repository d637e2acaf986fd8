// Package pages serves the HTML site: the generator page, the static content
// pages, robots.txt and sitemap.xml.
package pages

import (
	"embed"
	"encoding/xml"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gopkg.in/yaml.v3"

	"headcanonhub/internal/headcanon"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

//go:embed pages.yaml
var catalogYAML []byte

// Page is one entry of the content catalog.
type Page struct {
	Path        string   `yaml:"path"`
	Title       string   `yaml:"title"`
	Description string   `yaml:"description"`
	ChangeFreq  string   `yaml:"changefreq"`
	Priority    float64  `yaml:"priority"`
	Paragraphs  []string `yaml:"paragraphs"`
}

type viewData struct {
	Title       string
	Description string
	Canonical   string
	Year        int
	Paragraphs  []string
	NotFound    bool
	Tones       []headcanon.ToneOption
	Fandoms     []string
}

type Handler struct {
	siteURL string
	pages   []Page
	tmpl    *template.Template
}

// LoadCatalog parses the embedded page catalog.
func LoadCatalog() ([]Page, error) {
	var pages []Page
	if err := yaml.Unmarshal(catalogYAML, &pages); err != nil {
		return nil, fmt.Errorf("parse page catalog: %w", err)
	}
	seen := make(map[string]bool, len(pages))
	for _, p := range pages {
		if !strings.HasPrefix(p.Path, "/") || !strings.HasSuffix(p.Path, "/") || p.Path == "/" {
			return nil, fmt.Errorf("page %q: path must look like /name/", p.Path)
		}
		if seen[p.Path] {
			return nil, fmt.Errorf("page %q: duplicate path", p.Path)
		}
		seen[p.Path] = true
	}
	return pages, nil
}

// NewHandler builds the site for siteURL, the public base URL without a
// trailing slash.
func NewHandler(siteURL string) (*Handler, error) {
	pages, err := LoadCatalog()
	if err != nil {
		return nil, err
	}
	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	return &Handler{
		siteURL: strings.TrimRight(siteURL, "/"),
		pages:   pages,
		tmpl:    tmpl,
	}, nil
}

func (h *Handler) Pages() []Page {
	return append([]Page(nil), h.pages...)
}

func (h *Handler) RegisterRoutes(r *gin.Engine) error {
	static, err := fs.Sub(staticFS, "static")
	if err != nil {
		return fmt.Errorf("static fs: %w", err)
	}
	r.SetHTMLTemplate(h.tmpl)
	r.StaticFS("/static", http.FS(static))

	r.GET("/", h.index)
	for _, p := range h.pages {
		r.GET(p.Path, h.page(p))
	}
	r.GET("/robots.txt", h.robots)
	r.GET("/sitemap.xml", h.sitemap)
	r.NoRoute(h.notFound)
	return nil
}

func (h *Handler) base(title, description, path string) viewData {
	return viewData{
		Title:       title,
		Description: description,
		Canonical:   h.siteURL + path,
		Year:        time.Now().Year(),
	}
}

func (h *Handler) index(c *gin.Context) {
	d := h.base("Free Headcanon Generator", "Generate wholesome, funny, dark or emotional headcanons for any character or ship.", "/")
	d.Tones = headcanon.ToneOptions()
	d.Fandoms = headcanon.PopularFandoms()
	c.HTML(http.StatusOK, "index.html", d)
}

func (h *Handler) page(p Page) gin.HandlerFunc {
	return func(c *gin.Context) {
		d := h.base(p.Title, p.Description, p.Path)
		d.Paragraphs = p.Paragraphs
		c.HTML(http.StatusOK, "page.html", d)
	}
}

func (h *Handler) notFound(c *gin.Context) {
	if strings.HasPrefix(c.Request.URL.Path, "/api/") || strings.HasPrefix(c.Request.URL.Path, "/admin/") {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	d := h.base("Page not found", "This page does not exist.", c.Request.URL.Path)
	d.Paragraphs = []string{"We could not find that page. Head back to the generator and make something up instead."}
	d.NotFound = true
	c.HTML(http.StatusNotFound, "page.html", d)
}

func (h *Handler) robots(c *gin.Context) {
	body := "User-agent: *\n" +
		"Allow: /\n" +
		"Disallow: /admin/\n" +
		"Disallow: /api/\n" +
		"Sitemap: " + h.siteURL + "/sitemap.xml\n"
	c.Data(http.StatusOK, "text/plain; charset=utf-8", []byte(body))
}

type urlset struct {
	XMLName xml.Name     `xml:"urlset"`
	XMLNS   string       `xml:"xmlns,attr"`
	URLs    []sitemapURL `xml:"url"`
}

type sitemapURL struct {
	Loc        string `xml:"loc"`
	ChangeFreq string `xml:"changefreq,omitempty"`
	Priority   string `xml:"priority,omitempty"`
}

// Sitemap renders the sitemap document for the home page plus the catalog.
func (h *Handler) Sitemap() ([]byte, error) {
	set := urlset{XMLNS: "http://www.sitemaps.org/schemas/sitemap/0.9"}
	set.URLs = append(set.URLs, sitemapURL{Loc: h.siteURL + "/", ChangeFreq: "weekly", Priority: "1.0"})
	for _, p := range h.pages {
		set.URLs = append(set.URLs, sitemapURL{
			Loc:        h.siteURL + p.Path,
			ChangeFreq: p.ChangeFreq,
			Priority:   fmt.Sprintf("%.1f", p.Priority),
		})
	}
	b, err := xml.MarshalIndent(set, "", "    ")
	if err != nil {
		return nil, fmt.Errorf("marshal sitemap: %w", err)
	}
	return append([]byte(xml.Header), b...), nil
}

func (h *Handler) sitemap(c *gin.Context) {
	b, err := h.Sitemap()
	if err != nil {
		_ = c.Error(err)
		c.Status(http.StatusInternalServerError)
		return
	}
	c.Data(http.StatusOK, "application/xml", b)
}
