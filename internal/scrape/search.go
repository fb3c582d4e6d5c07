package scrape

import (
	"net/url"
	"strconv"
	"time"

	"github.com/PuerkitoBio/goquery"
	log "github.com/sirupsen/logrus"

	"github.com/priceowl/priceowl/internal/database"
)

// maxPageParam caps page-parameter pagination as a loop guard against
// runaway result sets.
const maxPageParam = 10

// Search runs a query against a store and returns product page URLs in
// encounter order across result pages. limit <= 0 means unbounded, subject
// to the store's pagination termination rules. No URL appears twice.
func (e *Extractor) Search(query string, store *database.Store, limit int) []string {
	nextURL := store.Search.URL + url.QueryEscape(query)
	var urls []string
	seen := make(map[string]struct{})

	for nextURL != "" {
		log.WithFields(log.Fields{"store": store.Name, "query": query}).Infof("searching at %s", nextURL)

		doc, ok := e.document(nextURL, store)
		if !ok {
			return urls
		}

		full := false
		items := doc.Find(cssSelector(store.Search.Tag, "class", store.Search.Class))
		items.EachWithBreak(func(i int, item *goquery.Selection) bool {
			if limit > 0 && i >= limit {
				return false
			}
			href := resolveItemLink(item, store)
			if href == "" {
				return true
			}
			if limit > 0 && len(urls) == limit {
				full = true
				return false
			}
			if _, dup := seen[href]; dup {
				return true
			}
			seen[href] = struct{}{}
			urls = append(urls, href)
			return true
		})
		if full || (limit > 0 && len(urls) == limit) {
			return urls
		}

		switch {
		case store.Search.PageParam != "":
			next, ok := nextPageByParam(nextURL, store.Search.PageParam)
			if !ok {
				return urls
			}
			nextURL = next

		case store.Search.NextPage != "":
			next := nextPageByLink(doc, store)
			if next == "" {
				return urls
			}
			nextURL = next
			time.Sleep(e.searchDelay)

		default:
			return urls
		}
	}
	return urls
}

// resolveItemLink finds the product link inside one result list item and
// absolutizes it against the store's base URL.
func resolveItemLink(item *goquery.Selection, store *database.Store) string {
	title := item.Find(classSelector(store.Search.Link)).First()
	if title.Length() == 0 {
		return ""
	}

	anchor := title
	if !anchor.Is("a") {
		anchor = title.Find("a").First()
		if anchor.Length() == 0 {
			anchor = title.NextAllFiltered("a").First()
		}
	}
	href, ok := anchor.Attr("href")
	if !ok || href == "" {
		return ""
	}
	return absoluteURL(store.Website, href)
}

// nextPageByParam increments the page-number query parameter, seeding it at
// 1 when absent. Returns false once the parameter would pass the loop guard.
func nextPageByParam(current, param string) (string, bool) {
	u, err := url.Parse(current)
	if err != nil {
		return "", false
	}
	q := u.Query()

	page := 1
	if raw := q.Get(param); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			page = n
		}
	}
	if page >= maxPageParam {
		return "", false
	}

	q.Set(param, strconv.Itoa(page+1))
	u.RawQuery = q.Encode()
	return u.String(), true
}

// nextPageByLink locates the configured next-page element, resolving it to
// an anchor if necessary. Empty means the last page was reached.
func nextPageByLink(doc *goquery.Document, store *database.Store) string {
	next := doc.Find(classSelector(store.Search.NextPage)).First()
	if next.Length() == 0 {
		return ""
	}
	if !next.Is("a") {
		next = next.Find("a").First()
		if next.Length() == 0 {
			return ""
		}
	}
	href, ok := next.Attr("href")
	if !ok || href == "" {
		return ""
	}
	return absoluteURL(store.Website, href)
}
