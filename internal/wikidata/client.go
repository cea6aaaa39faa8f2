// Package wikidata resolves cross-references and awards for an IMDb id
// through the Wikidata SPARQL endpoint.
package wikidata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/spotlightapp/spotlight-server/internal/domain"
	"github.com/spotlightapp/spotlight-server/internal/httpx"
)

const defaultEndpoint = "https://query.wikidata.org/sparql"

// Wikidata properties.
const (
	propIMDb            = "P345"
	propAniList         = "P8729"
	propRottenTomatoes  = "P1258"
	propAllocineFilm    = "P1265"
	propAllocineSeries  = "P1267"
	propAwardReceived   = "P166"
	propNominatedFor    = "P1411"
	propPartOf          = "P361"
	propInstanceOf      = "P31"
	entityPrefix        = "http://www.wikidata.org/entity/"
	sparqlResultsAccept = "application/sparql-results+json"
)

var imdbPattern = regexp.MustCompile(`^tt\d{5,10}$`)

// ErrInvalidID is returned for ids that are not well-formed IMDb ids.
var ErrInvalidID = errors.New("wikidata: invalid imdb id")

// Error wraps an underlying error with operation context.
type Error struct {
	Op   string // "anilist", "rtSlug", "allocine", "awards"
	IMDb string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("wikidata %s [%s]: %v", e.Op, e.IMDb, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Client runs SPARQL queries.
type Client struct {
	http     *httpx.Client
	endpoint string
	logger   *slog.Logger
}

// New creates a client. endpoint may be empty for the public service.
func New(hc *httpx.Client, endpoint string, logger *slog.Logger) *Client {
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Client{http: hc, endpoint: endpoint, logger: logger}
}

type binding struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type sparqlResponse struct {
	Results struct {
		Bindings []map[string]binding `json:"bindings"`
	} `json:"results"`
}

func (c *Client) query(ctx context.Context, sparql string) ([]map[string]binding, error) {
	u := c.endpoint + "?" + url.Values{"query": {sparql}, "format": {"json"}}.Encode()

	body, err := c.http.Do(ctx, httpx.Request{
		Method: http.MethodGet,
		URL:    u,
		Header: http.Header{
			"Accept":     {sparqlResultsAccept},
			"User-Agent": {httpx.UserAgent},
		},
	})
	if err != nil {
		return nil, err
	}

	var resp sparqlResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode sparql response: %w", err)
	}
	return resp.Results.Bindings, nil
}

// singleValue returns the first value of property for the item with imdbID.
func (c *Client) singleValue(ctx context.Context, op, imdbID, property string) (string, bool, error) {
	if !imdbPattern.MatchString(imdbID) {
		return "", false, &Error{Op: op, IMDb: imdbID, Err: ErrInvalidID}
	}

	q := fmt.Sprintf(`SELECT ?value WHERE { ?item wdt:%s "%s" . ?item wdt:%s ?value . } LIMIT 1`,
		propIMDb, imdbID, property)

	rows, err := c.query(ctx, q)
	if err != nil {
		return "", false, &Error{Op: op, IMDb: imdbID, Err: err}
	}
	for _, row := range rows {
		if v := strings.TrimSpace(row["value"].Value); v != "" {
			return v, true, nil
		}
	}
	return "", false, nil
}

// AniListID returns the AniList media id cross-referenced to imdbID.
func (c *Client) AniListID(ctx context.Context, imdbID string) (int, bool, error) {
	v, ok, err := c.singleValue(ctx, "anilist", imdbID, propAniList)
	if err != nil || !ok {
		return 0, false, err
	}
	id, err := strconv.Atoi(v)
	if err != nil {
		return 0, false, &Error{Op: "anilist", IMDb: imdbID, Err: fmt.Errorf("non-numeric anilist id %q", v)}
	}
	return id, true, nil
}

// RottenTomatoesSlug returns the Rotten Tomatoes path, e.g. "m/the_matrix".
func (c *Client) RottenTomatoesSlug(ctx context.Context, imdbID string) (string, bool, error) {
	return c.singleValue(ctx, "rtSlug", imdbID, propRottenTomatoes)
}

// AllocineID returns the AlloCiné film or series id. mediaType is "movie" or "show".
func (c *Client) AllocineID(ctx context.Context, imdbID, mediaType string) (string, bool, error) {
	prop := propAllocineFilm
	if mediaType == "show" {
		prop = propAllocineSeries
	}
	return c.singleValue(ctx, "allocine", imdbID, prop)
}

// Awards returns the award summary for imdbID from one combined query over
// award-received and nominated-for statements.
func (c *Client) Awards(ctx context.Context, imdbID string) (domain.AwardsSummary, error) {
	if !imdbPattern.MatchString(imdbID) {
		return domain.AwardsSummary{}, &Error{Op: "awards", IMDb: imdbID, Err: ErrInvalidID}
	}

	q := fmt.Sprintf(`SELECT ?st ?kind ?award ?awardLabel ?parentLabel ?classLabel WHERE {
  ?item wdt:%[1]s "%[2]s" .
  { ?item p:%[3]s ?st . ?st ps:%[3]s ?award . BIND("won" AS ?kind) }
  UNION
  { ?item p:%[4]s ?st . ?st ps:%[4]s ?award . BIND("nominated" AS ?kind) }
  OPTIONAL { ?award wdt:%[5]s ?parent . }
  OPTIONAL { ?award wdt:%[6]s ?class . }
  SERVICE wikibase:label { bd:serviceParam wikibase:language "en". }
}`, propIMDb, imdbID, propAwardReceived, propNominatedFor, propPartOf, propInstanceOf)

	rows, err := c.query(ctx, q)
	if err != nil {
		return domain.AwardsSummary{}, &Error{Op: "awards", IMDb: imdbID, Err: err}
	}

	statements := make([]Statement, 0, len(rows))
	for _, row := range rows {
		statements = append(statements, Statement{
			ID:          row["st"].Value,
			Won:         row["kind"].Value == "won",
			AwardID:     strings.TrimPrefix(row["award"].Value, entityPrefix),
			Label:       row["awardLabel"].Value,
			ParentLabel: row["parentLabel"].Value,
			ClassLabel:  row["classLabel"].Value,
		})
	}

	summary := Classify(statements)
	c.logger.Debug("wikidata awards", "imdb_id", imdbID, "statements", len(statements), "empty", summary.Empty())
	return summary, nil
}
