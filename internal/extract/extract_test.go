package extract

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lca-companion/internal/jobs"
)

const productHTML = `<!doctype html>
<html>
<head>
  <title>Fallback title</title>
  <meta property="og:title" content="Reusable Water Bottle">
  <script type="application/ld+json">{"@context":"https://schema.org","@graph":[{"@type":"Organization"},{"@type":"Product","material":"Stainless steel"}]}</script>
  <style>.x { color: red }</style>
</head>
<body>
  <nav>Home | Shop | Cart</nav>
  <main>
    <h1>Reusable   Water Bottle</h1>
    <p>Double-walled.
       Keeps drinks cold.</p>
    <script>track()</script>
  </main>
  <footer>Copyright</footer>
</body>
</html>`

func TestFromBytesHTML(t *testing.T) {
	page, err := FromBytes(context.Background(), []byte(productHTML), "text/html; charset=utf-8")
	require.NoError(t, err)

	assert.Equal(t, "Reusable Water Bottle", page.Title)
	assert.Equal(t, "Stainless steel", page.Material)
	assert.Equal(t, "text/html", page.ContentType)
	assert.Contains(t, page.Text, "Reusable Water Bottle")
	assert.Contains(t, page.Text, "Keeps drinks cold.")
	assert.NotContains(t, page.Text, "Cart")
	assert.NotContains(t, page.Text, "track()")
	assert.NotContains(t, page.Text, "Copyright")
}

func TestFromBytesMicrodataMaterialAndTitleFallback(t *testing.T) {
	html := `<html><head><title> Desk Lamp </title></head><body><div><span itemprop="material">Aluminium</span> lamp</div></body></html>`

	page, err := FromBytes(context.Background(), []byte(html), "")
	require.NoError(t, err)
	assert.Equal(t, "Desk Lamp", page.Title)
	assert.Equal(t, "Aluminium", page.Material)
	assert.Equal(t, "Aluminium lamp", page.Text)
}

func TestFromBytesRejectsUnsupported(t *testing.T) {
	_, err := FromBytes(context.Background(), []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}, "image/png")
	assert.True(t, errors.Is(err, ErrUnsupportedType))
}

func TestFromBytesBadPDF(t *testing.T) {
	_, err := FromBytes(context.Background(), []byte("%PDF-1.4 not really a pdf"), "application/octet-stream")
	assert.Error(t, err)
}

func TestFromBytesHonorsCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := FromBytes(ctx, []byte(productHTML), "text/html")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFetcherFromURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.Header.Get("User-Agent"), "LCACompanion")
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(productHTML))
	}))
	defer srv.Close()

	page, err := NewFetcher(0).FromURL(context.Background(), srv.URL+"/p/1")
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/p/1", page.URL)
	assert.Equal(t, "Reusable Water Bottle", page.Title)

	energy := 4.5
	payload := page.Payload(jobs.UserInputs{EnergyKWh: &energy})
	assert.Equal(t, page.URL, payload.URL)
	assert.Equal(t, page.Text, payload.RawText)
	assert.Equal(t, "Stainless steel", payload.UserInputs.Material)
	assert.Equal(t, &energy, payload.UserInputs.EnergyKWh)

	payload = page.Payload(jobs.UserInputs{Material: "Glass"})
	assert.Equal(t, "Glass", payload.UserInputs.Material)
}

func TestFetcherFromURLErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	f := NewFetcher(0)
	_, err := f.FromURL(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")

	_, err = f.FromURL(context.Background(), "ftp://example.com/file")
	assert.Error(t, err)
}

func TestTruncateRunes(t *testing.T) {
	assert.Equal(t, "héll", truncateRunes("héllo", 4))
	assert.Equal(t, "short", truncateRunes("short", 10))
	assert.Equal(t, "a\nb c", cleanWhitespace("  a  \n\n   b\t c "))
	assert.False(t, strings.Contains(cleanWhitespace("x\n\n\ny"), "\n\n"))
}
