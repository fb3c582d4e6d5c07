package scrape

import (
	"fmt"
	"testing"
)

const resultItem = `<li class="item"><h2 class="product-name"><a href="%s">%s</a></h2></li>`

func resultsPage(items ...string) string {
	page := "<html><body><ul>"
	for _, item := range items {
		page += item
	}
	return page + "</ul></body></html>"
}

func TestSearchSinglePage(t *testing.T) {
	e, _ := newTestExtractor(map[string]string{
		"http://getfpv.test/search?q=motor": resultsPage(
			fmt.Sprintf(resultItem, "/p/f40", "F40"),
			fmt.Sprintf(resultItem, "http://getfpv.test/p/f60", "F60"),
		),
	})

	urls := e.Search("motor", testingStore(), 0)
	if len(urls) != 2 {
		t.Fatalf("expected 2 urls, got %d: %v", len(urls), urls)
	}
	if urls[0] != "http://getfpv.test/p/f40" {
		t.Errorf("relative link not absolutized: %s", urls[0])
	}
	if urls[1] != "http://getfpv.test/p/f60" {
		t.Errorf("unexpected second url: %s", urls[1])
	}
}

func TestSearchLimit(t *testing.T) {
	e, f := newTestExtractor(map[string]string{
		"http://getfpv.test/search?q=motor": resultsPage(
			fmt.Sprintf(resultItem, "/p/f40", "F40"),
			fmt.Sprintf(resultItem, "/p/f60", "F60"),
		),
	})

	urls := e.Search("motor", testingStore(), 1)
	if len(urls) != 1 {
		t.Fatalf("expected 1 url, got %d", len(urls))
	}
	if len(f.fetched) != 1 {
		t.Errorf("a satisfied limit must not fetch further pages, got %d fetches", len(f.fetched))
	}
}

func TestSearchDeduplicates(t *testing.T) {
	e, _ := newTestExtractor(map[string]string{
		"http://getfpv.test/search?q=motor": resultsPage(
			fmt.Sprintf(resultItem, "/p/f40", "F40"),
			fmt.Sprintf(resultItem, "/p/f40", "F40 again"),
		),
	})

	urls := e.Search("motor", testingStore(), 0)
	if len(urls) != 1 {
		t.Errorf("duplicate links must be dropped, got %v", urls)
	}
}

func TestSearchPageParamCap(t *testing.T) {
	store := testingStore()
	store.Search.PageParam = "page"

	pages := map[string]string{
		"http://getfpv.test/search?q=motor": resultsPage(fmt.Sprintf(resultItem, "/p/f40", "F40")),
	}
	for n := 2; n <= 20; n++ {
		pages[fmt.Sprintf("http://getfpv.test/search?page=%d&q=motor", n)] =
			resultsPage(fmt.Sprintf(resultItem, "/p/f40", "F40"))
	}

	e, f := newTestExtractor(pages)
	urls := e.Search("motor", store, 0)
	if len(urls) != 1 {
		t.Errorf("expected 1 deduplicated url, got %d", len(urls))
	}
	if len(f.fetched) != 10 {
		t.Errorf("pagination must stop at page 10, fetched %d pages", len(f.fetched))
	}
}

func TestSearchNextLink(t *testing.T) {
	store := testingStore()
	store.Search.NextPage = "pagination-next"

	e, _ := newTestExtractor(map[string]string{
		"http://getfpv.test/search?q=motor": resultsPage(fmt.Sprintf(resultItem, "/p/f40", "F40")) +
			`<span class="pagination-next"><a href="/search?q=motor&p=2">Next</a></span>`,
		"http://getfpv.test/search?q=motor&p=2": resultsPage(fmt.Sprintf(resultItem, "/p/f60", "F60")),
	})

	urls := e.Search("motor", store, 0)
	if len(urls) != 2 {
		t.Fatalf("expected 2 urls across pages, got %d: %v", len(urls), urls)
	}
	if urls[1] != "http://getfpv.test/p/f60" {
		t.Errorf("unexpected second-page url: %s", urls[1])
	}
}

func TestSearchTitleWithoutAnchor(t *testing.T) {
	e, _ := newTestExtractor(map[string]string{
		// The anchor follows the title element instead of wrapping it.
		"http://getfpv.test/search?q=motor": resultsPage(
			`<li class="item"><h2 class="product-name">F40</h2><a href="/p/f40">view</a></li>`,
		),
	})

	urls := e.Search("motor", testingStore(), 0)
	if len(urls) != 1 || urls[0] != "http://getfpv.test/p/f40" {
		t.Errorf("sibling anchor not resolved: %v", urls)
	}
}

func TestSearchFetchFailure(t *testing.T) {
	e, _ := newTestExtractor(nil)
	if urls := e.Search("motor", testingStore(), 0); len(urls) != 0 {
		t.Errorf("expected no urls on fetch failure, got %v", urls)
	}
}

func TestSearchQueryEscaped(t *testing.T) {
	e, f := newTestExtractor(nil)
	e.Search("brushless motor", testingStore(), 0)
	if len(f.fetched) != 1 || f.fetched[0] != "http://getfpv.test/search?q=brushless+motor" {
		t.Errorf("query not escaped: %v", f.fetched)
	}
}
