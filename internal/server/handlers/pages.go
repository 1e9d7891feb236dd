package handlers

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"go.uber.org/zap"

	apperrors "github.com/postsmith/postsmith/internal/errors"
	"github.com/postsmith/postsmith/internal/observability"
	"github.com/postsmith/postsmith/internal/post"
)

//go:embed templates/*.html
var templateFS embed.FS

// PlatformOption is one entry of the platform select.
type PlatformOption struct {
	Value    string
	Label    string
	Selected bool
}

// PageData feeds every HTML page.
type PageData struct {
	Title          string
	MinTopicLength int
	MaxTopicLength int
	RateLimit      string
	Platforms      []PlatformOption

	Topic          string
	Platform       post.Platform
	PlatformName   string
	Submitted      bool
	GeneratedPost  string
	ProcessingTime string
	Error          string
	FieldErrors    map[string]string
}

// Pages renders the server-side HTML.
type Pages struct {
	index     *template.Template
	generate  *template.Template
	rules     post.Rules
	rateLimit string
}

// NewPages parses the embedded templates.
func NewPages(rules post.Rules, limit int, window time.Duration) (*Pages, error) {
	index, err := parsePage("templates/index.html")
	if err != nil {
		return nil, err
	}
	generate, err := parsePage("templates/generate_post.html")
	if err != nil {
		return nil, err
	}

	return &Pages{
		index:     index,
		generate:  generate,
		rules:     rules,
		rateLimit: fmt.Sprintf("%d requests per %d seconds", limit, int(window/time.Second)),
	}, nil
}

func parsePage(page string) (*template.Template, error) {
	tmpl, err := template.New("layout.html").ParseFS(templateFS, "templates/layout.html", page)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", page, err)
	}
	return tmpl, nil
}

func (p *Pages) baseData(title string) PageData {
	return PageData{
		Title:          title,
		MinTopicLength: p.rules.MinTopicLength,
		MaxTopicLength: p.rules.MaxTopicLength,
		RateLimit:      p.rateLimit,
	}
}

func (p *Pages) generateData(platform post.Platform) PageData {
	data := p.baseData("Generate a post")
	data.Platform = platform
	data.PlatformName = platform.DisplayName()
	for _, option := range post.Platforms() {
		data.Platforms = append(data.Platforms, PlatformOption{
			Value:    string(option),
			Label:    option.DisplayName(),
			Selected: option == platform,
		})
	}
	return data
}

// Index handles GET /.
func (p *Pages) Index(w http.ResponseWriter, r *http.Request) {
	p.render(w, r, p.index, http.StatusOK, p.baseData("Social post generator"))
}

// RenderGenerate writes the generation page with status.
func (p *Pages) RenderGenerate(w http.ResponseWriter, r *http.Request, status int, data PageData) {
	p.render(w, r, p.generate, status, data)
}

func (p *Pages) render(w http.ResponseWriter, r *http.Request, tmpl *template.Template, status int, data PageData) {
	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "layout", data); err != nil {
		observability.Error("render page failed", zap.String("path", r.URL.Path), zap.Error(err))
		respondWithError(w, r, apperrors.WrapInternal(r.Context(), err, "Unable to render page"))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func formatSeconds(s float64) string {
	return fmt.Sprintf("%.2f", s)
}
