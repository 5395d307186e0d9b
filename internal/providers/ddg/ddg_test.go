package ddg_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/DeafMist/blog-factory/internal/providers/ddg"
	"github.com/stretchr/testify/require"
)

func TestVerificationToken(t *testing.T) {
	tests := []struct {
		name  string
		page  string
		token string
		ok    bool
	}{
		{name: "quoted assignment", page: `<script>vqd="4-1234-5678";</script>`, token: "4-1234-5678", ok: true},
		{name: "single quoted", page: `vqd='abc'`, token: "abc", ok: true},
		{name: "query string", page: `href="/i.js?q=x&vqd=3-99-100&p=1"`, token: "3-99-100", ok: true},
		{name: "url encoded", page: `data-link="q%3Dcat%26vqd%3D4-777&x"`, token: "4-777", ok: true},
		{name: "json field", page: `{"vqd":"4-json-token"}`, token: "4-json-token", ok: true},
		{name: "missing", page: `<html>nothing here</html>`, ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, ok := ddg.VerificationToken(tt.page)
			require.Equal(t, tt.ok, ok)
			require.Equal(t, tt.token, token)
		})
	}
}

type fakeDDG struct {
	page     string
	results  string
	searches atomic.Int32
	lastP    atomic.Value
}

func (f *fakeDDG) server(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(f.page))
	})
	mux.HandleFunc("/i.js", func(w http.ResponseWriter, r *http.Request) {
		f.searches.Add(1)
		f.lastP.Store(r.URL.Query().Get("p"))
		if r.URL.Query().Get("vqd") != "4-token" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		_, _ = w.Write([]byte(f.results))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newClient(srv *httptest.Server) *ddg.Client {
	return ddg.New(nil, nil, nil, ddg.WithEndpoints(srv.URL+"/", srv.URL+"/i.js"))
}

const results = `{"results":[
	{"image":"https://img.example/1.jpg","thumbnail":"https://img.example/1t.jpg","title":"One","source":"Example","width":640,"height":480},
	{"image":"","thumbnail":"https://img.example/2t.jpg","title":"No image"},
	{"image":"https://img.example/3.jpg","thumbnail":"https://img.example/3t.jpg","title":"Three"},
	{"image":"https://img.example/4.jpg","thumbnail":"https://img.example/4t.jpg"}
]}`

func TestSearchFiltersAndLimits(t *testing.T) {
	fake := &fakeDDG{page: `<script>vqd="4-token"</script>`, results: results}
	c := newClient(fake.server(t))

	got := c.Search(context.Background(), "golang gopher", ddg.SearchOptions{Limit: 2})
	require.Equal(t, []ddg.Image{
		{URL: "https://img.example/1.jpg", ThumbnailURL: "https://img.example/1t.jpg", Title: "One", Source: "Example", Width: 640, Height: 480},
		{URL: "https://img.example/3.jpg", ThumbnailURL: "https://img.example/3t.jpg", Title: "Three"},
	}, got)
	require.Equal(t, "1", fake.lastP.Load())
}

func TestSearchCachesFullList(t *testing.T) {
	fake := &fakeDDG{page: `vqd="4-token"`, results: results}
	c := newClient(fake.server(t))

	require.Len(t, c.Search(context.Background(), "Gopher", ddg.SearchOptions{Limit: 1}), 1)
	require.Len(t, c.Search(context.Background(), " gopher ", ddg.SearchOptions{Limit: 10}), 3)
	require.Equal(t, int32(1), fake.searches.Load())
	require.Equal(t, 1, c.CacheSize())

	c.Search(context.Background(), "gopher", ddg.SearchOptions{SafeSearchOff: true})
	require.Equal(t, int32(2), fake.searches.Load())
	require.Equal(t, "-1", fake.lastP.Load())
}

func TestSearchWithoutTokenReturnsNothing(t *testing.T) {
	fake := &fakeDDG{page: `<html></html>`, results: results}
	c := newClient(fake.server(t))

	require.Empty(t, c.Search(context.Background(), "cats", ddg.SearchOptions{}))
	require.Zero(t, fake.searches.Load())
	require.Zero(t, c.CacheSize())
}

func TestSearchAbsorbsErrors(t *testing.T) {
	fake := &fakeDDG{page: `vqd="wrong"`, results: results}
	c := newClient(fake.server(t))

	require.Empty(t, c.Search(context.Background(), "cats", ddg.SearchOptions{}))
	require.Zero(t, c.CacheSize(), "failures are not cached")
}

func TestSearchEmptyQuery(t *testing.T) {
	c := ddg.New(nil, nil, nil)
	require.Empty(t, c.Search(context.Background(), "   ", ddg.SearchOptions{}))
}

func TestFirst(t *testing.T) {
	fake := &fakeDDG{page: `vqd="4-token"`, results: results}
	c := newClient(fake.server(t))

	img := c.First(context.Background(), "gopher", false)
	require.NotNil(t, img)
	require.Equal(t, "One", img.Title)

	empty := &fakeDDG{page: `vqd="4-token"`, results: `{"results":[]}`}
	require.Nil(t, newClient(empty.server(t)).First(context.Background(), "none", false))
}
