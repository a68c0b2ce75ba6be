package igdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"gametrack/internal/models"

	"github.com/go-playground/validator/v10"
)

var ErrUpstream = errors.New("catalog request failed")

const (
	BrowsePageSize  = 10
	UserGamesLimit  = 50
	FriendGameLimit = 500
	minRatingCount  = 30
)

var gameFields = []string{
	"artworks.image_id",
	"platforms.*",
	"category",
	"first_release_date",
	"franchise.name",
	"genres.name",
	"keywords.name",
	"name",
	"total_rating",
	"total_rating_count",
}

type TokenProvider interface {
	Token() (string, error)
}

type Client struct {
	log      *slog.Logger
	http     *http.Client
	baseURL  string
	clientID string
	tokens   TokenProvider
	validate *validator.Validate
}

func New(log *slog.Logger, httpClient *http.Client, baseURL, clientID string, tokens TokenProvider) *Client {
	return &Client{
		log:      log,
		http:     httpClient,
		baseURL:  strings.TrimRight(baseURL, "/"),
		clientID: clientID,
		tokens:   tokens,
		validate: validator.New(),
	}
}

// Games runs an apicalypse query against the games endpoint. Records that do not carry
// every field a client relies on are dropped.
func (c *Client) Games(ctx context.Context, query string) ([]models.Game, error) {
	const op = "igdb.Games"

	log := c.log.With(slog.String("op", op))

	token, err := c.tokens.Token()
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, ErrUpstream, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/games", strings.NewReader(query))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("Client-ID", c.clientID)
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("%s: %w: status %s", op, ErrUpstream, resp.Status)
	}

	var raw []json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, ErrUpstream, err)
	}

	games := make([]models.Game, 0, len(raw))
	for _, r := range raw {
		var g models.Game
		if err := json.Unmarshal(r, &g); err != nil {
			log.Debug("skipping undecodable game", slog.String("err", err.Error()))
			continue
		}

		if err := c.validate.Struct(g); err != nil {
			log.Debug("skipping incomplete game", slog.Int64("id", g.ID))
			continue
		}

		games = append(games, g)
	}

	return games, nil
}

// BrowseFilter narrows the catalog listing. Zero values mean "no filter".
type BrowseFilter struct {
	Page       int
	Platforms  []int64
	Genres     []int64
	Franchises []int64
	StartYear  int
	EndYear    int
}

// BrowseQuery lists well-rated games with artwork, excluding the ids in exclude.
func BrowseQuery(f BrowseFilter, exclude []int64) string {
	where := []string{"artworks != null", fmt.Sprintf("total_rating_count >= %d", minRatingCount)}

	if len(f.Platforms) > 0 {
		where = append(where, fmt.Sprintf("platforms = (%s)", joinIDs(f.Platforms)))
	}
	if len(f.Franchises) > 0 {
		where = append(where, fmt.Sprintf("franchise = (%s)", joinIDs(f.Franchises)))
	}
	if len(f.Genres) > 0 {
		where = append(where, fmt.Sprintf("genres = (%s)", joinIDs(f.Genres)))
	}
	if f.StartYear > 0 {
		where = append(where, fmt.Sprintf("first_release_date >= %d", yearToUnix(f.StartYear)))
	}
	if f.EndYear > 0 {
		where = append(where, fmt.Sprintf("first_release_date <= %d", yearToUnix(f.EndYear)))
	}
	if len(exclude) > 0 {
		where = append(where, fmt.Sprintf("id != (%s)", joinIDs(exclude)))
	}

	page := f.Page
	if page < 1 {
		page = 1
	}

	return fmt.Sprintf("fields %s; where %s; sort total_rating desc; limit %d; offset %d;",
		strings.Join(gameFields, ","),
		strings.Join(where, " & "),
		BrowsePageSize,
		(page-1)*BrowsePageSize,
	)
}

// ByIDsQuery fetches the given games, best rated first.
func ByIDsQuery(ids []int64, limit int) string {
	return fmt.Sprintf("fields %s; where id = (%s); sort total_rating desc; limit %d;",
		strings.Join(gameFields, ","),
		joinIDs(ids),
		limit,
	)
}

func joinIDs(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ",")
}

func yearToUnix(year int) int64 {
	return time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC).Unix()
}
