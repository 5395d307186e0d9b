package wikimedia_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/DeafMist/blog-factory/internal/providers/wikimedia"
	"github.com/stretchr/testify/require"
)

type fakeWiki struct {
	pageImage   map[string]string // "lang/title" -> response body
	commons     string
	commonsCode int
	search      string
	entities    string
	calls       atomic.Int32
}

func (f *fakeWiki) server(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/en/w/api.php", f.wikipedia("en"))
	mux.HandleFunc("/ko/w/api.php", f.wikipedia("ko"))
	mux.HandleFunc("/commons", func(w http.ResponseWriter, r *http.Request) {
		f.calls.Add(1)
		if f.commonsCode != 0 {
			w.WriteHeader(f.commonsCode)
			return
		}
		_, _ = w.Write([]byte(f.commons))
	})
	mux.HandleFunc("/wikidata", func(w http.ResponseWriter, r *http.Request) {
		f.calls.Add(1)
		switch r.URL.Query().Get("action") {
		case "wbsearchentities":
			_, _ = w.Write([]byte(f.search))
		case "wbgetentities":
			_, _ = w.Write([]byte(f.entities))
		default:
			w.WriteHeader(http.StatusBadRequest)
		}
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func (f *fakeWiki) wikipedia(lang string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f.calls.Add(1)
		body, ok := f.pageImage[lang+"/"+r.URL.Query().Get("titles")]
		if !ok {
			body = `{"query":{"pages":{"-1":{"title":"missing"}}}}`
		}
		_, _ = w.Write([]byte(body))
	}
}

func newClient(srv *httptest.Server) *wikimedia.Client {
	return wikimedia.New(nil, nil, nil, wikimedia.Endpoints{
		Wikipedia: srv.URL + "/{lang}/w/api.php",
		Wikidata:  srv.URL + "/wikidata",
		Commons:   srv.URL + "/commons",
		FilePath:  srv.URL + "/file/",
	})
}

const commonsBody = `{"query":{"pages":{"12":{"imageinfo":[{
	"url":"https://upload.example/full.jpg",
	"thumburl":"https://upload.example/thumb.jpg",
	"extmetadata":{
		"Artist":{"value":"<a href=\"//commons.example/User:Jane\">Jane &amp; Co</a>"},
		"LicenseShortName":{"value":"CC BY-SA 4.0"},
		"ImageDescription":{"value":"<p>Official portrait</p>"}
	}}]}}}}`

func TestLookupWikipediaWithCommonsMetadata(t *testing.T) {
	fake := &fakeWiki{
		pageImage: map[string]string{
			"en/Elon Musk": `{"query":{"pages":{"1":{"title":"Elon Musk","pageimage":"Elon_Musk.jpg"}}}}`,
		},
		commons: commonsBody,
	}
	c := newClient(fake.server(t))

	img := c.Lookup(context.Background(), "Elon Musk", wikimedia.Options{})
	require.Equal(t, &wikimedia.Image{
		ImageURL:         "https://upload.example/full.jpg",
		ThumbnailURL:     "https://upload.example/thumb.jpg",
		Attribution:      "Jane & Co / Wikimedia Commons",
		Source:           wikimedia.SourceWikipedia,
		License:          "CC BY-SA 4.0",
		EntityName:       "Elon Musk",
		ArtistName:       "Jane & Co",
		ImageDescription: "Official portrait",
	}, img)
}

func TestLookupFallsBackWhenCommonsFails(t *testing.T) {
	fake := &fakeWiki{
		pageImage: map[string]string{
			"en/Nvidia": `{"query":{"pages":{"7":{"title":"Nvidia","pageimage":"Logo.svg",
				"original":{"source":"https://upload.example/logo.svg","width":800,"height":600},
				"thumbnail":{"source":"https://upload.example/logo-400.png","width":400,"height":300}}}}}`,
		},
		commonsCode: http.StatusInternalServerError,
	}
	c := newClient(fake.server(t))

	img := c.Lookup(context.Background(), "Nvidia", wikimedia.Options{})
	require.NotNil(t, img)
	require.Equal(t, "Wikimedia Commons", img.Attribution)
	require.Equal(t, "CC BY-SA", img.License)
	require.Equal(t, "https://upload.example/logo.svg", img.ImageURL)
	require.Equal(t, "https://upload.example/logo-400.png", img.ThumbnailURL)
}

func TestLookupKoreanFallsBackToEnglish(t *testing.T) {
	fake := &fakeWiki{
		pageImage: map[string]string{
			"en/Samsung": `{"query":{"pages":{"3":{"title":"Samsung","pageimage":"Samsung.jpg"}}}}`,
		},
		commons: commonsBody,
	}
	c := newClient(fake.server(t))

	img := c.Lookup(context.Background(), "Samsung", wikimedia.Options{Language: "ko"})
	require.NotNil(t, img)
	require.Equal(t, "Samsung", img.EntityName)
}

func TestLookupWikidataFallback(t *testing.T) {
	fake := &fakeWiki{
		search:      `{"search":[{"id":"Q95"}]}`,
		entities:    `{"entities":{"Q95":{"claims":{"P18":[{"mainsnak":{"datavalue":{"value":"Google HQ.jpg"}}}]},"labels":{"en":{"value":"Google"}}}}}`,
		commonsCode: http.StatusBadGateway,
	}
	srv := fake.server(t)
	c := newClient(srv)

	img := c.Lookup(context.Background(), "google", wikimedia.Options{ThumbSize: 200})
	require.NotNil(t, img)
	require.Equal(t, wikimedia.SourceWikidata, img.Source)
	require.Equal(t, "Google", img.EntityName)
	require.Equal(t, srv.URL+"/file/Google_HQ.jpg", img.ImageURL)
	require.Equal(t, srv.URL+"/file/Google_HQ.jpg?width=200", img.ThumbnailURL)
}

func TestLookupCachesMisses(t *testing.T) {
	fake := &fakeWiki{search: `{"search":[]}`}
	c := newClient(fake.server(t))

	require.Nil(t, c.Lookup(context.Background(), "Nobody Known", wikimedia.Options{}))
	calls := fake.calls.Load()
	require.Positive(t, calls)

	require.Nil(t, c.Lookup(context.Background(), "  nobody known ", wikimedia.Options{}))
	require.Equal(t, calls, fake.calls.Load(), "miss must be served from cache")
}

func TestLookupAbsorbsNetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	c := wikimedia.New(nil, nil, nil, wikimedia.Endpoints{
		Wikipedia: srv.URL + "/{lang}",
		Wikidata:  srv.URL,
		Commons:   srv.URL,
	})
	require.Nil(t, c.Lookup(context.Background(), "Apple", wikimedia.Options{}))
}

func TestLookupBatch(t *testing.T) {
	fake := &fakeWiki{
		pageImage: map[string]string{
			"en/Tim Cook": `{"query":{"pages":{"1":{"title":"Tim Cook","pageimage":"Cook.jpg"}}}}`,
		},
		commons: commonsBody,
		search:  `{"search":[]}`,
	}
	c := newClient(fake.server(t))

	got := c.LookupBatch(context.Background(), []string{"Tim Cook", "Nobody"}, wikimedia.Options{})
	require.Len(t, got, 2)
	require.NotNil(t, got["Tim Cook"])
	require.Nil(t, got["Nobody"])
}

func TestAttribution(t *testing.T) {
	img := &wikimedia.Image{ArtistName: "Jane", License: "CC BY-SA 4.0"}
	require.Equal(t,
		`Jane, <a href="https://creativecommons.org/licenses/by-sa/4.0/" target="_blank" rel="noopener noreferrer">CC BY-SA 4.0</a>, via Wikimedia Commons`,
		wikimedia.Attribution(img))
	require.Equal(t, "Jane, CC BY-SA 4.0, via Wikimedia Commons", wikimedia.PlainAttribution(img))

	unknown := &wikimedia.Image{License: "GFDL"}
	require.Equal(t, "Unknown author, GFDL, via Wikimedia Commons", wikimedia.Attribution(unknown))
	require.Equal(t, "Unknown author, CC BY-SA, via Wikimedia Commons", wikimedia.PlainAttribution(&wikimedia.Image{}))
}

func TestLicenseURL(t *testing.T) {
	tests := map[string]string{
		"CC0":              "https://creativecommons.org/publicdomain/zero/1.0/",
		"  Public  Domain": "https://creativecommons.org/publicdomain/mark/1.0/",
		"cc by 3.0":        "https://creativecommons.org/licenses/by/3.0/",
		"GFDL":             "",
	}
	for in, want := range tests {
		require.Equal(t, want, wikimedia.LicenseURL(in), in)
	}
}
