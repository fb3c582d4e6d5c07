// Package scrape is the selector-driven extraction engine: it turns a store
// profile's per-field rules into typed product data and drives paginated
// search result harvesting.
package scrape

import (
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	log "github.com/sirupsen/logrus"
	"golang.org/x/text/unicode/norm"

	"github.com/priceowl/priceowl/internal/database"
	"github.com/priceowl/priceowl/internal/fetch"
)

// ProductData holds the typed values extracted from one product page.
// A nil pointer means the field was not found; Available nil means the
// stock state is unknown.
type ProductData struct {
	Name          *string
	Description   *string
	Price         *float64
	Currency      *string
	Image         *string
	Available     *bool
	HasVariations bool
	Link          string
}

// Extractor applies store profiles to fetched pages.
type Extractor struct {
	fetcher     fetch.Fetcher
	searchDelay time.Duration
}

// NewExtractor creates an extractor. searchDelay is the politeness interval
// slept between search result pages when following next-page links.
func NewExtractor(fetcher fetch.Fetcher, searchDelay time.Duration) *Extractor {
	return &Extractor{fetcher: fetcher, searchDelay: searchDelay}
}

// Product scrapes the requested fields from a product page. The second
// return is false when the page could not be fetched at all; fields whose
// selector matches nothing are simply omitted from the result.
func (e *Extractor) Product(pageURL string, store *database.Store, fields []database.Field) (*ProductData, bool) {
	if len(fields) == 0 {
		fields = database.DefaultFields
	}
	log.WithFields(log.Fields{"store": store.Name, "url": pageURL}).Infof("looking for %v", fields)

	doc, ok := e.document(pageURL, store)
	if !ok {
		return nil, false
	}

	data := &ProductData{Link: pageURL}
	for _, field := range fields {
		rule, configured := store.Fields[field]
		if !configured || rule.Selector == "" || rule.Tag == "" {
			continue
		}

		sel := findFirst(doc, rule)

		switch field {
		case database.FieldAvailability:
			// Absent tag leaves availability unknown.
			if sel == nil || rule.Match == "" {
				continue
			}
			e.extractAvailability(sel, rule, data)

		case database.FieldVariations:
			if sel != nil {
				data.HasVariations = true
			}

		case database.FieldImage:
			if sel == nil {
				continue
			}
			if link := extractImage(sel, store); link != "" {
				data.Image = &link
			}

		case database.FieldPrice:
			if sel == nil {
				continue
			}
			price, parsed := ParsePrice(sel.Text(), store.Locale)
			if !parsed {
				log.WithField("store", store.Name).Warnf("could not parse price %q", strings.TrimSpace(sel.Text()))
				continue
			}
			currency := store.Currency
			data.Price = &price
			data.Currency = &currency

		case database.FieldName:
			if sel == nil {
				continue
			}
			if text := normalizeText(sel.Text()); text != "" {
				data.Name = &text
			}

		case database.FieldDescription:
			if sel == nil {
				continue
			}
			if text := normalizeText(sel.Text()); text != "" {
				data.Description = &text
			}
		}
	}

	// A product exposing variation options without a positive availability
	// indicator cannot be judged from a single flag: report unknown.
	if data.HasVariations && (data.Available == nil || !*data.Available) {
		data.Available = nil
	}

	return data, true
}

func (e *Extractor) extractAvailability(sel *goquery.Selection, rule database.FieldRule, data *ProductData) {
	matcher, err := regexp.Compile("(?i)" + rule.Match)
	if err != nil {
		log.Warnf("invalid availability pattern %q: %v", rule.Match, err)
		return
	}
	text := strings.TrimSpace(sel.Text())
	available := matcher.MatchString(text)
	data.Available = &available
}

// extractImage resolves the image source of a matched tag: descend to an img
// tag if necessary, prefer the lazy-load attribute, then absolutize.
func extractImage(sel *goquery.Selection, store *database.Store) string {
	img := sel
	if !img.Is("img") {
		img = sel.Find("img").First()
		if img.Length() == 0 {
			return ""
		}
	}
	src, ok := img.Attr("data-src")
	if !ok {
		src, ok = img.Attr("src")
	}
	if !ok || src == "" {
		return ""
	}
	return formatImageLink(src, store)
}

// formatImageLink upgrades protocol-relative URLs and joins relative paths
// against the store's base URL. Sized image templates get a fixed width.
func formatImageLink(link string, store *database.Store) string {
	link = strings.ReplaceAll(link, "{width}", "300")
	if strings.HasPrefix(link, "//") {
		return "https:" + link
	}
	if !strings.HasPrefix(link, "http") {
		return absoluteURL(store.Website, link)
	}
	return link
}

// document fetches and parses a page, honoring the store's JS flag.
func (e *Extractor) document(pageURL string, store *database.Store) (*goquery.Document, bool) {
	html, ok := e.fetcher.Fetch(pageURL, store.ScrapeWithJS)
	if !ok {
		return nil, false
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		log.WithField("url", pageURL).Warnf("parsing HTML: %v", err)
		return nil, false
	}
	return doc, true
}

// findFirst locates the first tag matching a field rule, or nil.
func findFirst(doc *goquery.Document, rule database.FieldRule) *goquery.Selection {
	sel := doc.Find(cssSelector(rule.Tag, rule.Kind, rule.Selector)).First()
	if sel.Length() == 0 {
		return nil
	}
	return sel
}

// cssSelector builds a goquery selector from (tag, kind, value) rule parts.
func cssSelector(tag, kind, value string) string {
	if kind == "id" {
		return tag + "#" + value
	}
	return tag + classSelector(value)
}

// classSelector turns a space-separated class value into a .a.b selector.
func classSelector(value string) string {
	return "." + strings.Join(strings.Fields(value), ".")
}

// normalizeText applies Unicode NFKD normalization and trims whitespace.
func normalizeText(s string) string {
	return strings.TrimSpace(norm.NFKD.String(s))
}

// absoluteURL resolves href against base; on any parse failure it falls back
// to plain concatenation.
func absoluteURL(base, href string) string {
	if strings.HasPrefix(href, "http") {
		return href
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return base + href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return base + href
	}
	return baseURL.ResolveReference(ref).String()
}
