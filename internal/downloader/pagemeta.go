package downloader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly"
	"github.com/jaki95/yt-media-server/internal/domain"
)

const defaultPageTimeout = 15 * time.Second

var ErrNoThumbnail = errors.New("no thumbnail found")

// image meta tags checked in order of preference
var thumbnailSelectors = []string{
	"meta[property='og:image']",
	"meta[property='og:image:url']",
	"meta[name='twitter:image']",
	"link[rel='image_src']",
}

// PageThumbnailResolver scrapes the video page for a preview image and falls
// back to the well-known YouTube thumbnail location.
type PageThumbnailResolver struct {
	timeout         time.Duration
	fallbackBaseURL string
}

func NewPageThumbnailResolver(timeout time.Duration) *PageThumbnailResolver {
	if timeout <= 0 {
		timeout = defaultPageTimeout
	}
	return &PageThumbnailResolver{
		timeout:         timeout,
		fallbackBaseURL: "https://i.ytimg.com/vi",
	}
}

func (r *PageThumbnailResolver) Resolve(ctx context.Context, info *domain.VideoInfo) (string, error) {
	if info == nil {
		return "", ErrNoThumbnail
	}
	if info.Thumbnail != "" {
		return info.Thumbnail, nil
	}

	if info.WebpageURL != "" {
		thumbnail, err := r.scrape(ctx, info.WebpageURL)
		if err == nil {
			return thumbnail, nil
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		slog.Warn("Page scrape found no thumbnail", "url", info.WebpageURL, "error", err)
	}

	if info.ID != "" {
		return fmt.Sprintf("%s/%s/hqdefault.jpg", r.fallbackBaseURL, url.PathEscape(info.ID)), nil
	}

	return "", ErrNoThumbnail
}

func (r *PageThumbnailResolver) scrape(ctx context.Context, pageURL string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	c := colly.NewCollector(
		colly.AllowURLRevisit(),
		colly.MaxDepth(1),
		colly.UserAgent(defaultUserAgent),
	)
	c.SetRequestTimeout(r.timeout)

	c.OnRequest(func(req *colly.Request) {
		req.Headers.Set("Accept", "text/html,application/xhtml+xml")
		req.Headers.Set("Accept-Language", "en-US,en;q=0.5")
	})

	var found string
	c.OnHTML("head", func(e *colly.HTMLElement) {
		for _, selector := range thumbnailSelectors {
			e.DOM.Find(selector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
				value := s.AttrOr("content", s.AttrOr("href", ""))
				value = strings.TrimSpace(value)
				if value == "" {
					return true
				}
				found = e.Request.AbsoluteURL(value)
				return false
			})
			if found != "" {
				return
			}
		}
	})

	if err := c.Visit(pageURL); err != nil {
		return "", fmt.Errorf("failed to visit page: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if found == "" {
		return "", ErrNoThumbnail
	}

	return found, nil
}
