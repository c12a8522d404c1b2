package kb

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundprediction/minerva/pkg/types"
	"github.com/soundprediction/minerva/pkg/utils"
)

const gourmontJSON = `{"entities":{"Q309952":{"id":"Q309952","claims":{
	"P31":[{"mainsnak":{"snaktype":"value","property":"P31","datatype":"wikibase-item","datavalue":{"value":{"id":"Q5"},"type":"wikibase-entityid"}}}],
	"P18":[{"mainsnak":{"snaktype":"value","property":"P18","datatype":"commonsMedia","datavalue":{"value":"Remy de Gourmont par Valloton.jpg","type":"string"}}}]
}}}}`

func newWikidataServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/w/api.php", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "wbsearchentities", q.Get("action"))
		assert.Equal(t, "item", q.Get("type"))
		assert.Equal(t, "minerva-test", r.Header.Get("User-Agent"))
		if q.Get("search") == "Gourmont" && q.Get("language") == "fr" {
			fmt.Fprint(w, `{"search":[{"id":"Q309952"},{"id":"Q3424339"}]}`)
			return
		}
		fmt.Fprint(w, `{"search":[]}`)
	})
	mux.HandleFunc("/wiki/Special:EntityData/Q309952.json", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, gourmontJSON)
	})
	mux.HandleFunc("/wiki/Special:EntityData/", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no such entity", http.StatusNotFound)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient(t *testing.T, srv *httptest.Server) *WikidataClient {
	t.Helper()
	c, err := NewWikidataClient(WikidataConfig{
		Endpoint:   srv.URL + "/w/api.php",
		EntityData: srv.URL + "/wiki/Special:EntityData/",
		UserAgent:  "minerva-test",
		Timeout:    5 * time.Second,
	})
	require.NoError(t, err)
	return c
}

func TestWikidataClient(t *testing.T) {
	srv := newWikidataServer(t)
	c := newTestClient(t, srv)
	ctx := context.Background()

	t.Run("search", func(t *testing.T) {
		ids, err := c.Search(ctx, "Gourmont", "fr", 10)
		require.NoError(t, err)
		assert.Equal(t, []string{"Q309952", "Q3424339"}, ids)

		ids, err = c.Search(ctx, "Gourmont", "it", 10)
		require.NoError(t, err)
		assert.Empty(t, ids)
	})

	t.Run("fetch", func(t *testing.T) {
		rec, err := c.Fetch(ctx, "Q309952")
		require.NoError(t, err)
		assert.Equal(t, "Q309952", rec.ID)
		assert.True(t, rec.HasItem(types.PropertyInstanceOf, types.ItemHuman))
	})

	t.Run("fetch unknown", func(t *testing.T) {
		_, err := c.Fetch(ctx, "Q0")
		assert.ErrorIs(t, err, types.ErrNotFound)

		_, err = c.Fetch(ctx, types.NIL)
		assert.ErrorIs(t, err, types.ErrNotFound)
	})

	t.Run("config validation", func(t *testing.T) {
		_, err := NewWikidataClient(WikidataConfig{})
		assert.Error(t, err)
	})
}

func fastRetry() *utils.RetryConfig {
	return &utils.RetryConfig{MaxRetries: 3, InitialDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond, BackoffMultiplier: 2}
}

func TestGuardedRetries(t *testing.T) {
	var calls int32
	searcher := SearcherFunc(func(ctx context.Context, query, lang string, limit int) ([]string, error) {
		if atomic.AddInt32(&calls, 1) < 3 {
			return nil, &utils.StatusError{StatusCode: http.StatusServiceUnavailable, Body: "busy"}
		}
		return []string{"Q1"}, nil
	})
	fetcher := FetcherFunc(func(ctx context.Context, id string) (*types.KnowledgeRecord, error) {
		atomic.AddInt32(&calls, 1)
		return nil, types.NewNotFoundError(id)
	})

	g := NewGuarded(searcher, fetcher, fastRetry(), nil, nil)

	ids, err := g.Search(context.Background(), "Dupont", "fr", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"Q1"}, ids)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))

	atomic.StoreInt32(&calls, 0)
	_, err = g.Fetch(context.Background(), "Q0")
	assert.ErrorIs(t, err, types.ErrNotFound)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "not found is not retried")
	assert.Equal(t, "disabled", g.BreakerState())
}

func TestGuardedBreakerOpens(t *testing.T) {
	failing := SearcherFunc(func(ctx context.Context, query, lang string, limit int) ([]string, error) {
		return nil, errors.New("connection refused")
	})
	breaker := utils.NewBreaker("wikidata", utils.BreakerConfig{
		Enabled:          true,
		MaxRequests:      1,
		Interval:         time.Minute,
		Timeout:          time.Minute,
		ReadyToTripRatio: 0.5,
	}, nil, nil)

	g := NewGuarded(failing, nil, &utils.RetryConfig{MaxRetries: 0}, breaker, nil)
	for i := 0; i < 3; i++ {
		_, err := g.Search(context.Background(), "x", "fr", 1)
		require.Error(t, err)
	}
	assert.Equal(t, "open", g.BreakerState())
}

func TestCached(t *testing.T) {
	var searches, fetches int32
	searcher := SearcherFunc(func(ctx context.Context, query, lang string, limit int) ([]string, error) {
		atomic.AddInt32(&searches, 1)
		time.Sleep(5 * time.Millisecond)
		return []string{"Q1", "Q2"}, nil
	})
	fetcher := FetcherFunc(func(ctx context.Context, id string) (*types.KnowledgeRecord, error) {
		atomic.AddInt32(&fetches, 1)
		if id == "Q1" {
			return &types.KnowledgeRecord{ID: "Q1"}, nil
		}
		return nil, types.NewNotFoundError(id)
	})

	for _, tc := range []struct {
		name  string
		cache func(t *testing.T) Cache
	}{
		{"memory", func(t *testing.T) Cache { return NewMemoryCache() }},
		{"badger", func(t *testing.T) Cache {
			c, err := NewBadgerCache("", time.Hour)
			require.NoError(t, err)
			return c
		}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			atomic.StoreInt32(&searches, 0)
			atomic.StoreInt32(&fetches, 0)
			c := NewCached(searcher, fetcher, tc.cache(t), nil)
			defer c.Close()
			ctx := context.Background()

			var wg sync.WaitGroup
			for i := 0; i < 8; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					ids, err := c.Search(ctx, "Dupont", "fr", 10)
					assert.NoError(t, err)
					assert.Equal(t, []string{"Q1", "Q2"}, ids)
				}()
			}
			wg.Wait()
			_, err := c.Search(ctx, "Dupont", "fr", 10)
			require.NoError(t, err)
			assert.Equal(t, int32(1), atomic.LoadInt32(&searches))

			for i := 0; i < 2; i++ {
				rec, err := c.Fetch(ctx, "Q1")
				require.NoError(t, err)
				assert.Equal(t, "Q1", rec.ID)

				_, err = c.Fetch(ctx, "Q404")
				assert.ErrorIs(t, err, types.ErrNotFound)
			}
			assert.Equal(t, int32(2), atomic.LoadInt32(&fetches), "hits and not-found answers are cached")
		})
	}
}

func TestBadgerCachePersists(t *testing.T) {
	dir := t.TempDir()
	c, err := NewBadgerCache(dir, 0)
	require.NoError(t, err)
	require.NoError(t, c.Set("search:fr:10:Dupont", []byte(`["Q1"]`)))
	require.NoError(t, c.Close())

	c, err = NewBadgerCache(dir, 0)
	require.NoError(t, err)
	defer c.Close()
	v, ok, err := c.Get("search:fr:10:Dupont")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `["Q1"]`, string(v))

	_, ok, err = c.Get("missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLoadBase(t *testing.T) {
	dir := t.TempDir()
	kbPath := filepath.Join(dir, "kb.json")
	// trailing comma is repaired
	require.NoError(t, os.WriteFile(kbPath, []byte(`{"qids": {"Rachilde": "Q3418050", "Inconnu": "",}, "aliases": {}}`), 0o644))
	claimsPath := filepath.Join(dir, "claims.json")
	require.NoError(t, os.WriteFile(claimsPath, []byte(`{"Q3418050": {"P21": ["female"]}}`), 0o644))
	dumpPath := filepath.Join(dir, "dump.json")
	require.NoError(t, os.WriteFile(dumpPath, []byte("[\n {\"id\": \"Q3418050\", \"claims\": {}}\n]\n"), 0o644))

	base, err := LoadBase(kbPath)
	require.NoError(t, err)
	assert.Equal(t, "Q3418050", base.QID("Rachilde"))
	assert.Equal(t, types.NIL, base.QID("Inconnu"))
	assert.Equal(t, types.NIL, base.QID("Absent"))

	require.NoError(t, base.LoadClaims(claimsPath))
	assert.Equal(t, []string{"female"}, base.ClaimValues("Q3418050", "P21"))
	assert.Nil(t, base.ClaimValues("Q1", "P21"))

	require.NoError(t, base.LoadDump(dumpPath))
	rec, err := base.Fetch(context.Background(), "Q3418050")
	require.NoError(t, err)
	assert.Equal(t, "Q3418050", rec.ID)
	_, err = base.Fetch(context.Background(), "Q1")
	assert.ErrorIs(t, err, types.ErrNotFound)

	_, err = LoadBase(filepath.Join(dir, "missing.json"))
	assert.ErrorIs(t, err, types.ErrIO)
}

func TestPseudonyms(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pseudo.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"Willy": "Henry Gauthier-Villars", "Colette Willy": "Colette", "L'Ouvreuse": "Henry Gauthier-Villars"}`), 0o644))

	pseudonyms, err := LoadPseudonyms(path)
	require.NoError(t, err)
	assert.Len(t, pseudonyms, 3)
	assert.Equal(t, []string{"Colette", "Henry Gauthier-Villars"}, RealNames(pseudonyms))
}

func TestImageURL(t *testing.T) {
	url, err := ImageURL("Remy de Gourmont par Valloton.jpg", "commonsMedia")
	require.NoError(t, err)
	assert.Equal(t, "https://upload.wikimedia.org/wikipedia/commons/8/83/Remy_de_Gourmont_par_Valloton.jpg", url)

	_, err = ImageURL("x.jpg", "url")
	assert.Error(t, err)
}

func TestImageResolver(t *testing.T) {
	srv := newWikidataServer(t)
	r := NewImageResolver(newTestClient(t, srv))
	ctx := context.Background()

	url, err := r.Resolve(ctx, "Q309952")
	require.NoError(t, err)
	assert.Contains(t, url, "/8/83/Remy_de_Gourmont_par_Valloton.jpg")

	_, err = r.Resolve(ctx, "Q0")
	assert.ErrorIs(t, err, types.ErrNotFound)

	base := NewBase()
	base.AddRecords(&types.KnowledgeRecord{ID: "Q1"})
	_, err = NewImageResolver(base).Resolve(ctx, "Q1")
	assert.ErrorIs(t, err, types.ErrNotFound, "record without P18")
}

func TestResolveImages(t *testing.T) {
	srv := newWikidataServer(t)
	r := NewImageResolver(newTestClient(t, srv))

	base := NewBase()
	base.QIDs = map[string]string{"Gourmont": "Q309952", "Inconnu": "Q0", "Nil": ""}

	images, err := ResolveImages(context.Background(), r, base, []string{"Nil", "Inconnu", "Gourmont"}, 2, nil)
	require.NoError(t, err)
	require.Len(t, images, 1)
	assert.Contains(t, images["Gourmont"], "Remy_de_Gourmont_par_Valloton.jpg")
}
