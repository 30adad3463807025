package extractor

import (
	"net/url"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/pbaille/readai/internal/fetcher"
)

// ToMarkdown converts article HTML to Markdown for prompts. If conversion
// fails or produces nothing, the plain text of the HTML is returned.
// baseURL resolves relative links and may be empty.
func ToMarkdown(htmlContent, baseURL string) string {
	if strings.TrimSpace(htmlContent) == "" {
		return ""
	}

	domain := ""
	if u, err := url.Parse(baseURL); err == nil {
		domain = u.Host
	}

	converter := md.NewConverter(domain, true, nil)
	converted, err := converter.ConvertString(htmlContent)
	if err != nil || strings.TrimSpace(converted) == "" {
		return fetcher.TextFromHTML(htmlContent)
	}
	return strings.TrimSpace(converted)
}
