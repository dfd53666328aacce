package parser

import (
	"context"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
)

func TestBuildContentURL(t *testing.T) {
	t.Parallel()

	u, err := buildContentURL("https://learn.example.org/videos/{id}/watch", "lesson 7")
	if err != nil {
		t.Fatalf("buildContentURL returned error: %v", err)
	}
	if u != "https://learn.example.org/videos/lesson%207/watch" {
		t.Fatalf("unexpected url: %s", u)
	}

	if _, err := buildContentURL("", "v1"); err == nil {
		t.Fatal("expected error for empty template")
	}
	if _, err := buildContentURL("ftp://host/{id}", "v1"); err == nil {
		t.Fatal("expected error for unsupported scheme")
	}
}

func TestExtractLanguages(t *testing.T) {
	t.Parallel()

	html := `
	<html>
	  <head>
	    <link rel="alternate" hreflang="x-default" href="/v1">
	    <link rel="alternate" hreflang="TA" href="/ta/v1">
	  </head>
	  <body>
	    <video>
	      <source src="/v1.en.mp4" srclang="en">
	      <source src="/v1.hi.mp4" srclang="hi">
	      <track kind="subtitles" src="/v1.en.vtt" srclang="en">
	      <track kind="subtitles" src="/v1.fr.vtt" srclang="fr">
	    </video>
	  </body>
	</html>`

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		t.Fatalf("new document: %v", err)
	}

	got := extractLanguages(doc)
	want := []string{"en", "hi", "fr", "ta"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected languages: %v, want %v", got, want)
	}
}

func TestVariantScannerOriginalLanguages(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/videos/v1" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`<video><source src="/a.mp4" srclang="en"></video>`))
	}))
	defer server.Close()

	sc := NewVariantScanner(server.Client(), server.URL+"/videos/{id}", nil)

	langs, err := sc.OriginalLanguages(context.Background(), "v1")
	if err != nil {
		t.Fatalf("OriginalLanguages error: %v", err)
	}
	if len(langs) != 1 || langs[0] != "en" {
		t.Fatalf("unexpected languages: %v", langs)
	}

	if _, err := sc.OriginalLanguages(context.Background(), "missing"); err == nil {
		t.Fatal("expected error for missing page")
	}
}
