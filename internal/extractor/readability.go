// Package extractor turns web pages into clean, readable article HTML.
//
// The heuristics follow the usual readability approach: drop nodes that are
// never content, score paragraph containers by text length, comma count and
// class/id hints, penalise link-heavy blocks, then keep the best container
// and its strong siblings.
package extractor

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/pbaille/readai/internal/domain"
	"github.com/pbaille/readai/internal/fetcher"
	"github.com/ternarybob/arbor"
	"golang.org/x/net/html"
)

// WordsPerMinute is the reading speed used for reading time estimates.
const WordsPerMinute = 200

// ErrNoArticle is returned when a page has no readable body.
var ErrNoArticle = errors.New("could not parse article content")

// Article is the readable part of a web page.
type Article struct {
	Content           string `json:"content" yaml:"content"`
	Title             string `json:"title" yaml:"title"`
	EstimatedReadTime int    `json:"estimatedReadTime" yaml:"estimatedReadTime"`
}

// Extractor fetches URLs and extracts their article content.
type Extractor struct {
	fetcher *fetcher.Fetcher
	logger  arbor.ILogger
}

// New creates an Extractor that downloads pages with f.
func New(f *fetcher.Fetcher, logger arbor.ILogger) *Extractor {
	return &Extractor{fetcher: f, logger: logger}
}

// Extract downloads rawURL and returns its article. Fetch timeouts are
// reported as *domain.RemoteServiceError; every other failure as
// *domain.ExtractionError.
func (e *Extractor) Extract(ctx context.Context, rawURL string) (*Article, error) {
	page, err := e.fetcher.Fetch(ctx, rawURL)
	if err != nil {
		e.logger.Warn().Err(err).Str("url", rawURL).Msg("Fetch failed")
		if fetcher.IsTimeout(err) {
			return nil, &domain.RemoteServiceError{Op: "extract", Target: rawURL, Err: err}
		}
		return nil, &domain.ExtractionError{URL: rawURL, Err: err}
	}

	article, err := Parse(page.HTML, page.URL)
	if err != nil {
		e.logger.Warn().Err(err).Str("url", rawURL).Msg("Readability parse failed")
		return nil, &domain.ExtractionError{URL: rawURL, Err: err}
	}

	e.logger.Debug().
		Str("url", rawURL).
		Str("title", article.Title).
		Int("content_length", len(article.Content)).
		Int("reading_minutes", article.EstimatedReadTime).
		Msg("Article extracted")

	return article, nil
}

var (
	unlikelyCandidates = regexp.MustCompile(`(?i)-ad-|ai2html|banner|breadcrumbs|combx|comment|community|cover-wrap|disqus|extra|footer|gdpr|header|legends|menu|related|remark|replies|rss|shoutbox|sidebar|skyscraper|social|sponsor|supplemental|ad-break|agegate|pagination|pager|popup|yom-remote|newsletter|cookie`)
	maybeCandidate     = regexp.MustCompile(`(?i)and|article|body|column|content|main|shadow`)
	positiveHint       = regexp.MustCompile(`(?i)article|body|content|entry|hentry|h-entry|main|page|post|text|blog|story`)
	negativeHint       = regexp.MustCompile(`(?i)-ad-|hidden|^hid$| hid$| hid |^hid |banner|combx|comment|com-|contact|foot|footer|footnote|gdpr|masthead|media|meta|outbrain|promo|related|scroll|share|shoutbox|sidebar|skyscraper|sponsor|shopping|tags|tool|widget`)
)

const (
	minParagraphLength = 25
	siblingMinLength   = 80
)

// Parse extracts the article from an HTML page. base resolves relative
// links and images; it may be nil.
func Parse(page string, base *url.URL) (*Article, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return nil, fmt.Errorf("parse HTML: %w", err)
	}

	title := extractTitle(doc)
	prepare(doc)

	body := selectContent(doc)
	if body == nil {
		return nil, ErrNoArticle
	}

	clean(body, base)

	content, err := body.Html()
	if err != nil {
		return nil, fmt.Errorf("render article: %w", err)
	}
	content = `<div id="readability-page-1" class="page">` + strings.TrimSpace(content) + `</div>`

	words := fetcher.WordCount(content)
	if words == 0 {
		return nil, ErrNoArticle
	}

	return &Article{
		Content:           content,
		Title:             title,
		EstimatedReadTime: ReadingMinutes(words),
	}, nil
}

// ReadingMinutes rounds up to whole minutes. Any non-empty text takes at
// least one minute.
func ReadingMinutes(words int) int {
	if words <= 0 {
		return 0
	}
	return int(math.Ceil(float64(words) / WordsPerMinute))
}

// extractTitle extracts the page title from various sources
func extractTitle(doc *goquery.Document) string {
	if og, ok := doc.Find("meta[property='og:title']").Attr("content"); ok && strings.TrimSpace(og) != "" {
		return strings.TrimSpace(og)
	}
	if title := strings.TrimSpace(doc.Find("title").First().Text()); title != "" {
		return title
	}
	if h1 := strings.TrimSpace(doc.Find("h1").First().Text()); h1 != "" {
		return h1
	}
	if tw, ok := doc.Find("meta[name='twitter:title']").Attr("content"); ok && strings.TrimSpace(tw) != "" {
		return strings.TrimSpace(tw)
	}
	return "Untitled"
}

// prepare drops nodes that never hold article text.
func prepare(doc *goquery.Document) {
	doc.Find("script, style, noscript, iframe, template, svg, canvas, form, button, input, select, textarea, nav, aside, footer, link").Remove()

	doc.Find("header").Each(func(_ int, s *goquery.Selection) {
		if s.ParentsFiltered("article").Length() == 0 {
			s.Remove()
		}
	})

	doc.Find("body *").Each(func(_ int, s *goquery.Selection) {
		switch goquery.NodeName(s) {
		case "body", "article", "main", "a":
			return
		}
		hint := matchString(s)
		if hint == "" {
			return
		}
		if unlikelyCandidates.MatchString(hint) && !maybeCandidate.MatchString(hint) {
			s.Remove()
		}
	})
}

// selectContent scores paragraph containers and returns a wrapper holding
// the winner and its strong siblings, or nil when nothing readable is left.
func selectContent(doc *goquery.Document) *goquery.Selection {
	scores := make(map[*html.Node]float64)
	var order []*html.Node

	addScore := func(s *goquery.Selection, score float64) {
		if s.Length() == 0 {
			return
		}
		node := s.Get(0)
		if node.Type != html.ElementNode || node.Data == "html" {
			return
		}
		if _, seen := scores[node]; !seen {
			scores[node] = initialScore(s)
			order = append(order, node)
		}
		scores[node] += score
	}

	doc.Find("p, pre, td, blockquote").Each(func(_ int, p *goquery.Selection) {
		text := strings.TrimSpace(p.Text())
		if len(text) < minParagraphLength {
			return
		}
		score := 1 + float64(strings.Count(text, ",")) + math.Min(float64(len(text))/100, 3)

		parent := p.Parent()
		addScore(parent, score)
		addScore(parent.Parent(), score/2)
	})

	var (
		top      *html.Node
		topScore float64
	)
	for _, node := range order {
		sel := doc.FindNodes(node)
		final := scores[node] * (1 - linkDensity(sel))
		scores[node] = final
		if top == nil || final > topScore {
			top, topScore = node, final
		}
	}

	if top == nil {
		return fallbackContent(doc)
	}

	topSel := doc.FindNodes(top)
	wrapper := goquery.NewDocumentFromNode(&html.Node{Type: html.ElementNode, Data: "div"}).Selection
	threshold := math.Max(10, topScore*0.2)

	siblings := topSel.Parent().Children()
	if topSel.Parent().Length() == 0 {
		siblings = topSel
	}
	siblings.Each(func(_ int, sib *goquery.Selection) {
		node := sib.Get(0)
		keep := node == top
		if !keep {
			if score, ok := scores[node]; ok && score >= threshold {
				keep = true
			} else if goquery.NodeName(sib) == "p" {
				text := strings.TrimSpace(sib.Text())
				keep = len(text) > siblingMinLength && linkDensity(sib) < 0.25
			}
		}
		if keep {
			wrapper.AppendSelection(sib.Clone())
		}
	})

	return wrapper
}

// fallbackContent is used when no paragraph scored: short pages are
// taken whole from the most specific content container.
func fallbackContent(doc *goquery.Document) *goquery.Selection {
	for _, selector := range []string{"article", "main", "[role=main]", "body"} {
		s := doc.Find(selector).First()
		if s.Length() > 0 && strings.TrimSpace(s.Text()) != "" {
			return s
		}
	}
	return nil
}

// clean strips presentation attributes and resolves relative references.
func clean(s *goquery.Selection, base *url.URL) {
	s.Find("*").Each(func(_ int, el *goquery.Selection) {
		node := el.Get(0)
		attrs := node.Attr[:0]
		for _, a := range node.Attr {
			if a.Key == "style" || strings.HasPrefix(a.Key, "on") {
				continue
			}
			attrs = append(attrs, a)
		}
		node.Attr = attrs
	})

	s.Find("p").Each(func(_ int, p *goquery.Selection) {
		if strings.TrimSpace(p.Text()) == "" && p.Find("img").Length() == 0 {
			p.Remove()
		}
	})

	if base == nil {
		return
	}
	resolve := func(attr string) func(int, *goquery.Selection) {
		return func(_ int, el *goquery.Selection) {
			v, ok := el.Attr(attr)
			if !ok || strings.HasPrefix(v, "#") {
				return
			}
			ref, err := url.Parse(strings.TrimSpace(v))
			if err != nil {
				return
			}
			el.SetAttr(attr, base.ResolveReference(ref).String())
		}
	}
	s.Find("a[href]").Each(resolve("href"))
	s.Find("img[src]").Each(resolve("src"))
}

func initialScore(s *goquery.Selection) float64 {
	var score float64
	switch goquery.NodeName(s) {
	case "div", "article", "main":
		score += 5
	case "pre", "td", "blockquote":
		score += 3
	case "ol", "ul", "dl", "dd", "dt", "li", "form":
		score -= 3
	case "h1", "h2", "h3", "h4", "h5", "h6", "th":
		score -= 5
	}
	if hint := matchString(s); hint != "" {
		if negativeHint.MatchString(hint) {
			score -= 25
		}
		if positiveHint.MatchString(hint) {
			score += 25
		}
	}
	return score
}

func linkDensity(s *goquery.Selection) float64 {
	textLength := len(strings.TrimSpace(s.Text()))
	if textLength == 0 {
		return 0
	}
	var linkLength int
	s.Find("a").Each(func(_ int, a *goquery.Selection) {
		linkLength += len(strings.TrimSpace(a.Text()))
	})
	return float64(linkLength) / float64(textLength)
}

func matchString(s *goquery.Selection) string {
	class, _ := s.Attr("class")
	id, _ := s.Attr("id")
	return strings.TrimSpace(class + " " + id)
}
