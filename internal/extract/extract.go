// Package extract turns a product page into a job payload.
package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/ledongthuc/pdf"

	"lca-companion/internal/jobs"
)

const (
	mimePDF  = "application/pdf"
	mimeHTML = "text/html"

	defaultUserAgent = "Mozilla/5.0 (compatible; LCACompanion/1.0)"
	maxBodyBytes     = 20 << 20
	// MaxTextRunes caps raw_text sent to the backend.
	MaxTextRunes = 100_000
)

var ErrUnsupportedType = errors.New("unsupported content type")

// Page is the extracted content of one URL.
type Page struct {
	URL         string
	Title       string
	Text        string
	Material    string
	ContentType string
}

// Payload converts the page into a submission payload.
func (p Page) Payload(inputs jobs.UserInputs) jobs.Payload {
	if inputs.Material == "" {
		inputs.Material = p.Material
	}
	return jobs.Payload{
		URL:        p.URL,
		Title:      p.Title,
		RawText:    p.Text,
		UserInputs: inputs,
	}
}

// Fetcher downloads and extracts pages.
type Fetcher struct {
	Client    *http.Client
	UserAgent string
}

// NewFetcher returns a Fetcher with the given request timeout.
func NewFetcher(timeout time.Duration) *Fetcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Fetcher{Client: &http.Client{Timeout: timeout}, UserAgent: defaultUserAgent}
}

// FromURL fetches rawURL and extracts its title and text.
func (f *Fetcher) FromURL(ctx context.Context, rawURL string) (Page, error) {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return Page{}, fmt.Errorf("invalid url %q", rawURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, parsed.String(), nil)
	if err != nil {
		return Page{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", f.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/pdf;q=0.9,*/*;q=0.5")

	resp, err := f.Client.Do(req)
	if err != nil {
		return Page{}, fmt.Errorf("fetch %s: %w", parsed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Page{}, fmt.Errorf("fetch %s: status %d", parsed, resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return Page{}, fmt.Errorf("fetch %s: read: %w", parsed, err)
	}

	page, err := FromBytes(ctx, data, resp.Header.Get("Content-Type"))
	if err != nil {
		return Page{}, fmt.Errorf("extract %s: %w", parsed, err)
	}
	page.URL = parsed.String()
	if page.Title == "" {
		page.Title = parsed.Host
	}
	return page, nil
}

// FromBytes extracts a page from an in-memory body.
func FromBytes(ctx context.Context, data []byte, contentType string) (Page, error) {
	if err := ctx.Err(); err != nil {
		return Page{}, err
	}
	normalized := normalizeMimeType(contentType, data)
	var (
		page Page
		err  error
	)
	switch normalized {
	case mimePDF:
		page, err = fromPDF(data)
	case mimeHTML, "application/xhtml+xml":
		page, err = fromHTML(data)
	default:
		return Page{}, fmt.Errorf("%w: %s", ErrUnsupportedType, normalized)
	}
	if err != nil {
		return Page{}, err
	}
	page.ContentType = normalized
	page.Text = truncateRunes(page.Text, MaxTextRunes)
	return page, nil
}

func fromHTML(data []byte) (Page, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return Page{}, fmt.Errorf("parse html: %w", err)
	}

	page := Page{
		Title:    pageTitle(doc),
		Material: productMaterial(doc),
	}

	doc.Find("nav, footer, header, script, style, noscript, iframe, svg, form, .ad, .ads, .advertisement, .cookie-banner, .popup, [aria-hidden='true']").Remove()

	var main *goquery.Selection
	for _, selector := range []string{"main", "article", "[itemtype*='schema.org/Product']", "#content", ".content", ".product"} {
		if sel := doc.Find(selector); sel.Length() > 0 {
			main = sel.First()
			break
		}
	}
	if main == nil {
		main = doc.Find("body")
	}
	page.Text = cleanWhitespace(main.Text())
	return page, nil
}

func pageTitle(doc *goquery.Document) string {
	if og, ok := doc.Find(`meta[property="og:title"]`).Attr("content"); ok && strings.TrimSpace(og) != "" {
		return strings.TrimSpace(og)
	}
	if title := strings.TrimSpace(doc.Find("title").First().Text()); title != "" {
		return title
	}
	return strings.TrimSpace(doc.Find("h1").First().Text())
}

// productMaterial looks for a schema.org material, first as microdata then in JSON-LD.
func productMaterial(doc *goquery.Document) string {
	if sel := doc.Find(`[itemprop="material"]`).First(); sel.Length() > 0 {
		if v, ok := sel.Attr("content"); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
		if v := strings.TrimSpace(sel.Text()); v != "" {
			return v
		}
	}

	var material string
	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		material = materialFromJSONLD([]byte(s.Text()))
		return material == ""
	})
	return material
}

func materialFromJSONLD(raw []byte) string {
	var node any
	if err := json.Unmarshal(raw, &node); err != nil {
		return ""
	}
	return findMaterial(node)
}

func findMaterial(node any) string {
	switch v := node.(type) {
	case []any:
		for _, item := range v {
			if m := findMaterial(item); m != "" {
				return m
			}
		}
	case map[string]any:
		if m, ok := v["material"].(string); ok && strings.TrimSpace(m) != "" {
			return strings.TrimSpace(m)
		}
		if graph, ok := v["@graph"]; ok {
			return findMaterial(graph)
		}
	}
	return ""
}

func fromPDF(data []byte) (Page, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return Page{}, fmt.Errorf("open pdf: %w", err)
	}
	plain, err := reader.GetPlainText()
	if err != nil {
		return Page{}, fmt.Errorf("read pdf text: %w", err)
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, plain); err != nil {
		return Page{}, fmt.Errorf("read pdf text: %w", err)
	}
	return Page{Text: cleanWhitespace(buf.String())}, nil
}

func normalizeMimeType(contentType string, data []byte) string {
	if mt, _, err := mime.ParseMediaType(contentType); err == nil && mt != "" && mt != "application/octet-stream" {
		return strings.ToLower(mt)
	}
	if bytes.HasPrefix(data, []byte("%PDF-")) {
		return mimePDF
	}
	sniffed, _, _ := mime.ParseMediaType(http.DetectContentType(data))
	return sniffed
}

func cleanWhitespace(text string) string {
	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}

func truncateRunes(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit])
}
