package article

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"storyteller-server-go/internal/platform/config"
	platformerrors "storyteller-server-go/internal/platform/errors"
)

const samplePage = `<!DOCTYPE html>
<html>
<head><title>The Grasshopper and the Ants</title></head>
<body>
<article>
<h1>The Grasshopper and the Ants</h1>
<p>One bright day in late autumn a family of ants were bustling about in the
warm sunshine, drying out the grain they had stored up during the summer, when
a starving grasshopper, his fiddle under his arm, came up and humbly begged for
a bite to eat.</p>
<p>There is a time for work and a time for play, said the ants, and went on
with their drying. The grasshopper had spent the summer making music and now
found the cupboard bare.</p>
</article>
</body>
</html>`

func TestExtract(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(samplePage))
	}))
	defer srv.Close()

	extractor := NewExtractor(config.ArticleConfig{UserAgent: "test"}, nil)
	art, err := extractor.Extract(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Extract error: %v", err)
	}
	if art.Title != "The Grasshopper and the Ants" {
		t.Errorf("unexpected title: %q", art.Title)
	}
	if len(art.Text) == 0 {
		t.Fatal("expected non-empty text")
	}
}

func TestExtractFetchError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	extractor := NewExtractor(config.ArticleConfig{}, nil)
	_, err := extractor.Extract(context.Background(), srv.URL)
	if err == nil {
		t.Fatal("expected error for 404 page")
	}
	if !platformerrors.IsKind(err, platformerrors.KindFetch) {
		t.Errorf("expected fetch kind, got %v", err)
	}
}

func TestExtractUnreachable(t *testing.T) {
	extractor := NewExtractor(config.ArticleConfig{}, nil)
	_, err := extractor.Extract(context.Background(), "http://127.0.0.1:1/none")
	if err == nil {
		t.Fatal("expected error for unreachable host")
	}
	if !platformerrors.IsKind(err, platformerrors.KindFetch) {
		t.Errorf("expected fetch kind, got %v", err)
	}
}

func TestExtractInvalidURL(t *testing.T) {
	extractor := NewExtractor(config.ArticleConfig{}, nil)
	_, err := extractor.Extract(context.Background(), "not a url")
	if err == nil {
		t.Fatal("expected error for malformed url")
	}
	if !platformerrors.IsKind(err, platformerrors.KindFetch) {
		t.Errorf("expected fetch kind, got %v", err)
	}
}
