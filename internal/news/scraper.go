// Package news scrapes crypto market headlines used as optional
// context in the strategic prompt.
package news

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"

	"dual-llm-trader/internal/interfaces"
	"dual-llm-trader/internal/logger"
)

// Source is one headline site and the selector for its list items.
type Source struct {
	Name             string
	URL              string
	HeadlineSelector string
	RateLimit        time.Duration
}

func defaultSources() []Source {
	return []Source{
		{
			Name:             "CoinDesk",
			URL:              "https://www.coindesk.com/markets",
			HeadlineSelector: "a h2, a h3",
			RateLimit:        2 * time.Second,
		},
		{
			Name:             "Cointelegraph",
			URL:              "https://cointelegraph.com/tags/bitcoin",
			HeadlineSelector: "article span.post-card-inline__title, article h2",
			RateLimit:        2 * time.Second,
		},
	}
}

type Scraper struct {
	sources []Source
	timeout time.Duration
}

var _ interfaces.HeadlineSource = (*Scraper)(nil)

func NewScraper(timeout time.Duration) *Scraper {
	return &Scraper{sources: defaultSources(), timeout: timeout}
}

// Headlines collects up to limit headline strings across all sources.
// A source that fails or returns nothing is skipped; the caller treats
// an empty result as "no market context", never as a cycle failure.
func (s *Scraper) Headlines(ctx context.Context, limit int) ([]string, error) {
	if limit <= 0 {
		return nil, nil
	}
	perSource := limit / len(s.sources)
	if perSource < 1 {
		perSource = 1
	}

	var all []string
	for _, source := range s.sources {
		if ctx.Err() != nil {
			break
		}
		headlines, err := s.scrapeSource(source, perSource)
		if err != nil {
			logger.Warn(ctx, "Headline source failed", "source", source.Name, "error", err)
			continue
		}
		all = append(all, headlines...)
		time.Sleep(source.RateLimit)
	}

	all = Dedupe(all)
	if len(all) > limit {
		all = all[:limit]
	}
	logger.Debug(ctx, "Headline scrape complete", "headlines", len(all))
	return all, nil
}

func (s *Scraper) scrapeSource(source Source, max int) ([]string, error) {
	domain, err := hostOf(source.URL)
	if err != nil {
		return nil, err
	}

	c := colly.NewCollector(
		colly.AllowedDomains(domain),
		colly.MaxDepth(1),
		colly.Async(false),
	)
	c.SetRequestTimeout(s.timeout)
	c.OnRequest(func(r *colly.Request) {
		r.Headers.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	})

	var headlines []string
	c.OnHTML("body", func(e *colly.HTMLElement) {
		e.DOM.Find(source.HeadlineSelector).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
			if len(headlines) >= max {
				return false
			}
			if h := CleanHeadline(sel.Text()); h != "" {
				headlines = append(headlines, h)
			}
			return true
		})
	})

	if err := c.Visit(source.URL); err != nil {
		return nil, fmt.Errorf("visit %s: %w", source.Name, err)
	}
	c.Wait()
	return headlines, nil
}

// CleanHeadline normalizes scraped text to a single trimmed line.
func CleanHeadline(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) < 15 { // nav fragments, category labels
		return ""
	}
	return s
}

// Dedupe removes repeated headlines, preserving order.
func Dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	var out []string
	for _, h := range in {
		key := strings.ToLower(h)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, h)
	}
	return out
}

func hostOf(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	return u.Host, nil
}
