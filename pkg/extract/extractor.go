// Package extract turns a web page into clean plain text suitable
// for speech synthesis. The primary path goes through the Jina
// reader API; a direct-fetch HTML fallback strips markup locally.
package extract

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"math"
	"net/url"
	"strings"

	"audiobookgo/pkg/config"
	"audiobookgo/pkg/request"
)

const (
	defaultBaseURL = "https://r.jina.ai"
	wordsPerMinute = 250
)

// Content is the extraction result: readable prose plus the metadata
// the response surface reports alongside it.
type Content struct {
	URL         string `json:"url"`
	Title       string `json:"title"`
	Domain      string `json:"domain"`
	PlainText   string `json:"plain_text"`
	WordCount   int    `json:"word_count"`
	ReadingTime int    `json:"reading_time_minutes"`
	Source      string `json:"source"` // "jina" or "html"
}

// Extractor fetches and cleans web articles.
type Extractor struct {
	client       *request.Client
	jinaKey      string
	baseURL      string
	htmlFallback bool
	log          *slog.Logger
}

// New creates an Extractor. A missing Jina key disables the reader
// API path; callers should then only rely on the HTML fallback.
func New(client *request.Client, cfg *config.ExtractConfig, log *slog.Logger) *Extractor {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if log == nil {
		log = slog.Default()
	}
	return &Extractor{
		client:       client,
		jinaKey:      cfg.JinaKey,
		baseURL:      strings.TrimRight(baseURL, "/"),
		htmlFallback: cfg.HTMLFallback,
		log:          log,
	}
}

// Configured reports whether the reader API path is usable.
func (e *Extractor) Configured() bool {
	return e.jinaKey != ""
}

// Extract fetches the page and returns its readable content.
func (e *Extractor) Extract(ctx context.Context, rawURL string) (*Content, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return nil, fmt.Errorf("invalid url %q", rawURL)
	}

	if e.jinaKey != "" {
		content, jinaErr := e.viaJina(ctx, rawURL, parsed)
		if jinaErr == nil {
			return content, nil
		}
		if !e.htmlFallback {
			return nil, jinaErr
		}
		e.log.Warn("reader API failed, falling back to direct fetch", "url", rawURL, "error", jinaErr)
	} else if !e.htmlFallback {
		return nil, fmt.Errorf("no extraction path configured")
	}

	return e.viaHTML(ctx, rawURL, parsed)
}

// viaJina fetches the page through the reader API, which returns the
// article as plain text.
func (e *Extractor) viaJina(ctx context.Context, rawURL string, parsed *url.URL) (*Content, error) {
	headers := map[string]string{
		"Authorization":   "Bearer " + e.jinaKey,
		"X-Return-Format": "text",
	}
	resp, err := e.client.DoCached(ctx, "GET", e.baseURL+"/"+rawURL, headers, nil, extractKey(rawURL), nil)
	if err != nil {
		return nil, fmt.Errorf("reader API: %w", err)
	}

	text := strings.TrimSpace(string(resp.Body))
	if text == "" {
		return nil, fmt.Errorf("reader API returned no content for %q", rawURL)
	}
	return buildContent(rawURL, parsed, text, "jina"), nil
}

// viaHTML fetches the page directly and strips the markup locally.
func (e *Extractor) viaHTML(ctx context.Context, rawURL string, parsed *url.URL) (*Content, error) {
	resp, err := e.client.Get(ctx, rawURL, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch page: %w", err)
	}

	title, prose, err := extractProse(strings.NewReader(string(resp.Body)))
	if err != nil {
		return nil, fmt.Errorf("parse page: %w", err)
	}
	if prose == "" {
		return nil, fmt.Errorf("no readable content found at %q", rawURL)
	}

	text := prose
	if title != "" {
		text = title + "\n\n" + prose
	}
	return buildContent(rawURL, parsed, text, "html"), nil
}

// buildContent derives the metadata from the extracted text: the
// title is the first non-empty line, reading time assumes 250 words
// per minute.
func buildContent(rawURL string, parsed *url.URL, text, source string) *Content {
	title := ""
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			title = line
			break
		}
	}

	words := len(strings.Fields(text))
	minutes := int(math.Ceil(float64(words) / wordsPerMinute))
	if minutes < 1 && words > 0 {
		minutes = 1
	}

	return &Content{
		URL:         rawURL,
		Title:       title,
		Domain:      strings.TrimPrefix(parsed.Hostname(), "www."),
		PlainText:   text,
		WordCount:   words,
		ReadingTime: minutes,
		Source:      source,
	}
}

// extractKey derives the cache key for one page extraction.
func extractKey(rawURL string) string {
	h := sha256.Sum256([]byte("extract|" + rawURL))
	return "extract:" + hex.EncodeToString(h[:])
}
