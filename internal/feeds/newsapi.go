package feeds

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/dyike/CortexTrade/models"
)

const newsAPIURL = "https://newsapi.org"

// NewsAPI polls recent articles per symbol and reduces them to one
// sentiment/headline fact.
type NewsAPI struct {
	client   *resty.Client
	limiter  *rate.Limiter
	apiKey   string
	symbols  []string
	interval time.Duration
	log      zerolog.Logger
}

func NewNewsAPI(baseURL, apiKey string, symbols []string, interval time.Duration, log zerolog.Logger) *NewsAPI {
	if baseURL == "" {
		baseURL = newsAPIURL
	}
	return &NewsAPI{
		client:   newRESTClient(baseURL, 30*time.Second),
		limiter:  perMinute(60),
		apiKey:   apiKey,
		symbols:  symbols,
		interval: interval,
		log:      log.With().Str("feed", "newsapi").Logger(),
	}
}

func (n *NewsAPI) Name() string { return "newsapi" }

func (n *NewsAPI) RunNews(ctx context.Context, out chan<- models.NewsItem) error {
	return poll(ctx, n.interval, n.log, func(ctx context.Context) error {
		for _, symbol := range n.symbols {
			item, ok, err := n.Fetch(ctx, symbol)
			if err != nil {
				n.log.Warn().Err(err).Str("symbol", symbol).Msg("fetch failed")
				continue
			}
			if !ok {
				continue
			}
			if err := send(ctx, out, item); err != nil {
				return err
			}
		}
		return nil
	})
}

type article struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	PublishedAt string `json:"publishedAt"`
}

type everythingResponse struct {
	Status   string    `json:"status"`
	Message  string    `json:"message"`
	Articles []article `json:"articles"`
}

// Fetch returns false when no articles matched.
func (n *NewsAPI) Fetch(ctx context.Context, symbol string) (models.NewsItem, bool, error) {
	if err := n.limiter.Wait(ctx); err != nil {
		return models.NewsItem{}, false, err
	}
	var body everythingResponse
	resp, err := n.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"q":      symbol,
			"sortBy": "publishedAt",
			"apiKey": n.apiKey,
		}).
		SetResult(&body).
		Get("/v2/everything")
	if err != nil {
		return models.NewsItem{}, false, fmt.Errorf("fetch news %s: %w", symbol, err)
	}
	if resp.IsError() {
		return models.NewsItem{}, false, fmt.Errorf("API error %d: %s", resp.StatusCode(), body.Message)
	}
	if len(body.Articles) == 0 {
		return models.NewsItem{}, false, nil
	}

	positive := 0
	for _, a := range body.Articles {
		if strings.Contains(strings.ToLower(CleanText(a.Description)), "positive") {
			positive++
		}
	}
	first := body.Articles[0]
	return models.NewsItem{
		Symbol:    symbol,
		Sentiment: float64(positive) / float64(len(body.Articles)),
		Headline:  CleanText(first.Title),
		Timestamp: first.PublishedAt,
	}, true, nil
}

// CleanText strips markup that some publishers leave in titles and
// descriptions.
func CleanText(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return strings.TrimSpace(s)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return strings.TrimSpace(s)
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}
