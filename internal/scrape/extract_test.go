package scrape

import (
	"testing"

	"github.com/priceowl/priceowl/internal/database"
)

// fakeFetcher serves canned HTML keyed by URL.
type fakeFetcher struct {
	pages   map[string]string
	fetched []string
}

func (f *fakeFetcher) Fetch(url string, jsRequired bool) (string, bool) {
	f.fetched = append(f.fetched, url)
	html, ok := f.pages[url]
	return html, ok
}

func testingStore() *database.Store {
	return &database.Store{
		Name:     "getfpv",
		Website:  "http://getfpv.test",
		Locale:   "it_IT",
		Currency: "EUR",
		Search: database.SearchRules{
			URL:   "http://getfpv.test/search?q=",
			Tag:   "li",
			Class: "item",
			Link:  "product-name",
		},
		Fields: map[database.Field]database.FieldRule{
			database.FieldName:         {Selector: "product-name", Kind: "class", Tag: "h1"},
			database.FieldPrice:        {Selector: "price", Kind: "class", Tag: "span"},
			database.FieldImage:        {Selector: "product-image", Kind: "class", Tag: "div"},
			database.FieldAvailability: {Selector: "stock", Kind: "class", Tag: "p", Match: "^in stock"},
			database.FieldVariations:   {Selector: "variants", Kind: "class", Tag: "select"},
			database.FieldDescription:  {Selector: "description", Kind: "id", Tag: "div"},
		},
	}
}

func newTestExtractor(pages map[string]string) (*Extractor, *fakeFetcher) {
	f := &fakeFetcher{pages: pages}
	return NewExtractor(f, 0), f
}

func TestProductExtractsAllFields(t *testing.T) {
	e, _ := newTestExtractor(map[string]string{
		"http://getfpv.test/p/f40": `<html><body>
			<h1 class="product-name">  T-Motor F40 Pro  </h1>
			<span class="price">€1.234,56</span>
			<div class="product-image"><img data-src="//cdn.getfpv.test/f40.jpg" src="/placeholder.gif"></div>
			<p class="stock">In Stock</p>
			<div id="description">A 2306 racing motor</div>
		</body></html>`,
	})

	data, ok := e.Product("http://getfpv.test/p/f40", testingStore(), database.AllFields)
	if !ok {
		t.Fatal("expected extraction to succeed")
	}
	if data.Name == nil || *data.Name != "T-Motor F40 Pro" {
		t.Errorf("wrong name: %v", data.Name)
	}
	if data.Price == nil || *data.Price != 1234.56 {
		t.Errorf("wrong price: %v", data.Price)
	}
	if data.Currency == nil || *data.Currency != "EUR" {
		t.Errorf("wrong currency: %v", data.Currency)
	}
	if data.Image == nil || *data.Image != "https://cdn.getfpv.test/f40.jpg" {
		t.Errorf("lazy-load image should win and be upgraded: %v", data.Image)
	}
	if data.Available == nil || !*data.Available {
		t.Errorf("expected in-stock, got %v", data.Available)
	}
	if data.Description == nil || *data.Description != "A 2306 racing motor" {
		t.Errorf("wrong description: %v", data.Description)
	}
	if data.Link != "http://getfpv.test/p/f40" {
		t.Errorf("wrong link: %s", data.Link)
	}
}

func TestProductFetchFailure(t *testing.T) {
	e, _ := newTestExtractor(nil)
	if _, ok := e.Product("http://getfpv.test/p/gone", testingStore(), nil); ok {
		t.Error("expected failure when the page cannot be fetched")
	}
}

func TestProductOmitsMissingFields(t *testing.T) {
	e, _ := newTestExtractor(map[string]string{
		"http://getfpv.test/p/bare": `<html><body><h1 class="product-name">Bare</h1></body></html>`,
	})

	data, ok := e.Product("http://getfpv.test/p/bare", testingStore(), database.AllFields)
	if !ok {
		t.Fatal("expected extraction to succeed")
	}
	if data.Price != nil || data.Image != nil || data.Description != nil {
		t.Errorf("missing fields must be omitted, got %+v", data)
	}
	if data.Available != nil {
		t.Error("absent stock tag must leave availability unknown")
	}
}

func TestProductAvailabilityRuleNotConfigured(t *testing.T) {
	store := testingStore()
	delete(store.Fields, database.FieldAvailability)

	e, _ := newTestExtractor(map[string]string{
		"http://getfpv.test/p/x": `<html><body><h1 class="product-name">X</h1></body></html>`,
	})

	data, _ := e.Product("http://getfpv.test/p/x", store, database.AllFields)
	if data.Available != nil {
		t.Errorf("unconfigured availability must stay unknown, got %v", *data.Available)
	}
}

func TestProductUnparsablePriceOmitted(t *testing.T) {
	e, _ := newTestExtractor(map[string]string{
		"http://getfpv.test/p/x": `<html><body>
			<h1 class="product-name">X</h1>
			<span class="price">call for price</span>
		</body></html>`,
	})

	data, _ := e.Product("http://getfpv.test/p/x", testingStore(), database.AllFields)
	if data.Price != nil {
		t.Errorf("unparsable price must be omitted, got %v", *data.Price)
	}
}

func TestProductAvailabilityNoMatch(t *testing.T) {
	e, _ := newTestExtractor(map[string]string{
		"http://getfpv.test/p/oos": `<html><body>
			<h1 class="product-name">OOS</h1>
			<p class="stock">Out of stock</p>
		</body></html>`,
	})

	data, _ := e.Product("http://getfpv.test/p/oos", testingStore(), database.AllFields)
	if data.Available == nil || *data.Available {
		t.Errorf("expected out-of-stock, got %v", data.Available)
	}
}

func TestProductVariationsForceUnknown(t *testing.T) {
	e, _ := newTestExtractor(map[string]string{
		"http://getfpv.test/p/kv": `<html><body>
			<h1 class="product-name">F40</h1>
			<p class="stock">Out of stock</p>
			<select class="variants"><option>1950KV</option><option>2400KV</option></select>
		</body></html>`,
	})

	data, _ := e.Product("http://getfpv.test/p/kv", testingStore(), database.AllFields)
	if !data.HasVariations {
		t.Fatal("expected variations to be detected")
	}
	if data.Available != nil {
		t.Errorf("variations without positive stock must report unknown, got %v", *data.Available)
	}
}

func TestProductNameNormalized(t *testing.T) {
	e, _ := newTestExtractor(map[string]string{
		// U+FB01 fi ligature and a no-break space around the text
		"http://getfpv.test/p/fin": "<html><body><h1 class=\"product-name\"> Carbon ﬁn </h1></body></html>",
	})

	data, _ := e.Product("http://getfpv.test/p/fin", testingStore(), []database.Field{database.FieldName})
	if data.Name == nil || *data.Name != "Carbon fin" {
		t.Errorf("expected normalized name, got %v", data.Name)
	}
}

func TestProductRelativeImageJoined(t *testing.T) {
	e, _ := newTestExtractor(map[string]string{
		"http://getfpv.test/p/img": `<html><body>
			<div class="product-image"><img src="/media/f40.jpg"></div>
		</body></html>`,
	})

	data, _ := e.Product("http://getfpv.test/p/img", testingStore(), []database.Field{database.FieldImage})
	if data.Image == nil || *data.Image != "http://getfpv.test/media/f40.jpg" {
		t.Errorf("relative image not joined: %v", data.Image)
	}
}

func TestProductDefaultFields(t *testing.T) {
	e, _ := newTestExtractor(map[string]string{
		"http://getfpv.test/p/d": `<html><body>
			<h1 class="product-name">D</h1>
			<span class="price">9,99</span>
			<div id="description">never requested</div>
		</body></html>`,
	})

	data, _ := e.Product("http://getfpv.test/p/d", testingStore(), nil)
	if data.Name == nil || data.Price == nil {
		t.Error("default field set should cover name and price")
	}
	if data.Description != nil {
		t.Error("description is not part of the default field set")
	}
}
