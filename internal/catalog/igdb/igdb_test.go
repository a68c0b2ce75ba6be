package igdb

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	sl "gametrack/internal/lib/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticToken struct {
	token string
	err   error
}

func (s staticToken) Token() (string, error) { return s.token, s.err }

const completeGame = `{
	"id": 1,
	"name": "Doom",
	"artworks": [{"id": 5, "image_id": "abc"}],
	"category": 0,
	"first_release_date": 757382400,
	"genres": [{"id": 2, "name": "Shooter"}],
	"total_rating": 90.5,
	"total_rating_count": 120
}`

func TestGames(t *testing.T) {
	var (
		gotBody    string
		gotHeaders http.Header
		gotPath    string
	)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		gotHeaders = r.Header.Clone()
		gotPath = r.URL.Path

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `[`+completeGame+`, {"id": 2, "name": "No artwork"}]`)
	}))
	defer srv.Close()

	c := New(sl.NewDiscardLogger(), srv.Client(), srv.URL+"/", "client-id", staticToken{token: "tok"})

	games, err := c.Games(context.Background(), "fields name;")
	require.NoError(t, err)

	require.Len(t, games, 1)
	assert.Equal(t, int64(1), games[0].ID)
	assert.Equal(t, "Doom", games[0].Name)
	assert.Equal(t, "abc", games[0].Artworks[0].ImageID)

	assert.Equal(t, "/games", gotPath)
	assert.Equal(t, "fields name;", gotBody)
	assert.Equal(t, "client-id", gotHeaders.Get("Client-ID"))
	assert.Equal(t, "Bearer tok", gotHeaders.Get("Authorization"))
}

func TestGames_UpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := New(sl.NewDiscardLogger(), srv.Client(), srv.URL, "client-id", staticToken{token: "tok"})

	_, err := c.Games(context.Background(), "fields name;")
	assert.ErrorIs(t, err, ErrUpstream)
}

func TestGames_NoToken(t *testing.T) {
	c := New(sl.NewDiscardLogger(), http.DefaultClient, "http://unused", "client-id",
		staticToken{err: errors.New("not yet fetched")})

	_, err := c.Games(context.Background(), "fields name;")
	assert.ErrorIs(t, err, ErrUpstream)
}

func TestBrowseQuery(t *testing.T) {
	tests := []struct {
		name     string
		filter   BrowseFilter
		exclude  []int64
		contains []string
		absent   []string
	}{
		{
			name:     "defaults to first page",
			filter:   BrowseFilter{},
			contains: []string{"artworks != null & total_rating_count >= 30", "limit 10; offset 0;"},
			absent:   []string{"id !=", "platforms =", "first_release_date >="},
		},
		{
			name:     "third page",
			filter:   BrowseFilter{Page: 3},
			contains: []string{"offset 20;"},
		},
		{
			name: "all filters",
			filter: BrowseFilter{
				Page:       1,
				Platforms:  []int64{6, 48},
				Genres:     []int64{5},
				Franchises: []int64{9},
				StartYear:  2000,
				EndYear:    2001,
			},
			exclude: []int64{11, 12},
			contains: []string{
				"platforms = (6,48)",
				"genres = (5)",
				"franchise = (9)",
				"first_release_date >= 946684800",
				"first_release_date <= 978307200",
				"id != (11,12)",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := BrowseQuery(tt.filter, tt.exclude)

			for _, s := range tt.contains {
				assert.Contains(t, q, s)
			}
			for _, s := range tt.absent {
				assert.NotContains(t, q, s)
			}
		})
	}
}

func TestByIDsQuery(t *testing.T) {
	q := ByIDsQuery([]int64{3, 1}, UserGamesLimit)

	assert.Contains(t, q, "where id = (3,1);")
	assert.Contains(t, q, "sort total_rating desc;")
	assert.Contains(t, q, "limit 50;")
}
