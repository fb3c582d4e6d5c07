package database

import (
	"math"
	"path/filepath"
	"sync"
	"testing"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func ptr(s string) *string { return &s }

func testStore(t *testing.T, db *DB, name string) *Store {
	t.Helper()
	s := &Store{
		Name:     name,
		Website:  "http://" + name + ".test",
		Region:   "ITA",
		Locale:   "it_IT",
		Currency: "EUR",
		Search: SearchRules{
			URL:   "http://" + name + ".test/search?q=",
			Tag:   "li",
			Class: "item",
			Link:  "product-name",
		},
		Fields: map[Field]FieldRule{
			FieldName:  {Selector: "product-name", Kind: "class", Tag: "div"},
			FieldPrice: {Selector: "price", Kind: "class", Tag: "span"},
		},
	}
	id, err := db.InsertStore(s)
	if err != nil {
		t.Fatalf("inserting store: %v", err)
	}
	s.ID = id
	return s
}

func TestInsertAndGetStore(t *testing.T) {
	db := openTestDB(t)
	testStore(t, db, "getfpv")

	got, err := db.GetStoreByName("getfpv")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil {
		t.Fatal("expected store, got nil")
	}
	if got.Search.Tag != "li" || got.Search.Class != "item" {
		t.Errorf("search rules did not round-trip: %+v", got.Search)
	}
	if got.Fields[FieldPrice].Selector != "price" {
		t.Errorf("field rules did not round-trip: %+v", got.Fields)
	}
	if got.IsScrapable {
		t.Error("new store should not be scrapable before a check")
	}
}

func TestInsertStoreRejectsBadRules(t *testing.T) {
	db := openTestDB(t)
	s := &Store{
		Name:    "broken",
		Website: "http://broken.test",
		Search:  SearchRules{URL: "http://broken.test/s?q=", Tag: "li", Class: "item", Link: "name"},
		Fields: map[Field]FieldRule{
			FieldName: {Selector: "product-name", Kind: "xpath", Tag: "div"},
		},
	}
	if _, err := db.InsertStore(s); err == nil {
		t.Error("expected validation error for bad selector kind")
	}
}

func TestScrapableVerdicts(t *testing.T) {
	db := openTestDB(t)
	s := testStore(t, db, "rdq")

	if err := db.SetNotScrapable(s.ID, "Could not find a price"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, _ := db.GetStoreByID(s.ID)
	if got.IsScrapable || got.NotScrapableReason == nil {
		t.Fatal("expected not-scrapable verdict with reason")
	}

	if err := db.SetScrapable(s.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, _ = db.GetStoreByID(s.ID)
	if !got.IsScrapable {
		t.Error("expected scrapable")
	}
	if got.NotScrapableReason != nil {
		t.Error("expected reason to be cleared")
	}
	if got.LastCheck == nil {
		t.Error("expected last_check to be stamped")
	}
}

func TestProductID(t *testing.T) {
	if got := ProductID("GetFPV", "T Motor F40 Pro"); got != "GetFPV_T_Motor_F40_Pro" {
		t.Errorf("unexpected identity key: %s", got)
	}
}

func TestUpsertProductIdempotence(t *testing.T) {
	db := openTestDB(t)
	s := testStore(t, db, "getfpv")

	price := 19.99
	p := &Product{
		ID:      ProductID(s.Name, "F40 Pro"),
		Name:    "F40 Pro",
		Price:   &price,
		Link:    "http://getfpv.test/p/f40",
		StoreID: s.ID,
	}

	created, err := db.UpsertProduct(p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !created {
		t.Error("first upsert should create")
	}

	created, err = db.UpsertProduct(p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created {
		t.Error("second upsert should update in place")
	}

	products, _ := db.GetProductsForStore(s.ID)
	if len(products) != 1 {
		t.Fatalf("expected exactly one active row, got %d", len(products))
	}
	if !products[0].IsActive {
		t.Error("expected row to be active")
	}
}

func TestUpsertProductConcurrent(t *testing.T) {
	db := openTestDB(t)
	s := testStore(t, db, "getfpv")

	var wg sync.WaitGroup
	errs := make(chan error, 4)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p := &Product{
				ID:      ProductID(s.Name, "Racer 5"),
				Name:    "Racer 5",
				Link:    "http://getfpv.test/p/racer5",
				StoreID: s.ID,
			}
			if _, err := db.UpsertProduct(p); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("concurrent upsert raised: %v", err)
	}

	products, _ := db.GetProductsForStore(s.ID)
	if len(products) > 1 {
		t.Errorf("expected at most one active row, got %d", len(products))
	}
}

func TestProductsOrderedOldestFirst(t *testing.T) {
	db := openTestDB(t)
	s := testStore(t, db, "getfpv")

	for _, p := range []struct{ name, date string }{
		{"Newer", "2022-02-01T00:00:00Z"},
		{"Oldest", "2022-01-01T00:00:00Z"},
		{"Middle", "2022-01-15T00:00:00Z"},
	} {
		date := p.date
		if _, err := db.UpsertProduct(&Product{
			ID: ProductID(s.Name, p.name), Name: p.name,
			Link: "http://getfpv.test/p", StoreID: s.ID, ImportDate: &date,
		}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	products, err := db.GetProductsForStore(s.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(products) != 3 {
		t.Fatalf("expected 3 products, got %d", len(products))
	}
	if products[0].Name != "Oldest" || products[2].Name != "Newer" {
		t.Errorf("wrong re-import order: %s, %s, %s", products[0].Name, products[1].Name, products[2].Name)
	}
}

func TestDeactivateProduct(t *testing.T) {
	db := openTestDB(t)
	s := testStore(t, db, "getfpv")

	p := &Product{ID: ProductID(s.Name, "Gone"), Name: "Gone", Link: "http://x.test", StoreID: s.ID}
	db.UpsertProduct(p)
	if err := db.DeactivateProduct(p.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, _ := db.GetProduct(p.ID)
	if got == nil || got.IsActive {
		t.Error("expected soft-deactivated row to survive as inactive")
	}
	products, _ := db.GetProductsForStore(s.ID)
	if len(products) != 0 {
		t.Errorf("inactive products should not be listed, got %d", len(products))
	}
}

func TestQueryPriorityOrdering(t *testing.T) {
	db := openTestDB(t)
	db.InsertImportQuery("frame", PriorityLow, nil)
	db.InsertImportQuery("motor", PriorityHigh, nil)
	db.InsertImportQuery("esc", PriorityMedium, nil)

	queries, err := db.GetActiveQueries()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(queries) != 3 {
		t.Fatalf("expected 3 queries, got %d", len(queries))
	}
	if queries[0].Text != "motor" || queries[2].Text != "frame" {
		t.Errorf("wrong priority order: %s, %s, %s", queries[0].Text, queries[1].Text, queries[2].Text)
	}
}

func TestRecordClickBumpsPriorityScore(t *testing.T) {
	db := openTestDB(t)
	s := testStore(t, db, "getfpv")
	qid, _ := db.InsertImportQuery("motor", PriorityMedium, nil)

	p := &Product{
		ID: ProductID(s.Name, "F40"), Name: "F40",
		Link: "http://getfpv.test/p/f40", StoreID: s.ID, ImportQueryID: &qid,
	}
	db.UpsertProduct(p)

	if err := db.RecordClick(p.ID, ptr("f40 motor"), nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := db.RecordClick(p.ID, nil, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	q, _ := db.GetQuery(qid)
	if q.Clicks != 2 {
		t.Errorf("expected 2 clicks, got %d", q.Clicks)
	}
	if math.Abs(q.PriorityScore-1.02) > 1e-9 {
		t.Errorf("expected score 1.02, got %v", q.PriorityScore)
	}

	clicks, _ := db.GetClicksForProduct(p.ID)
	if len(clicks) != 2 {
		t.Errorf("expected 2 click events, got %d", len(clicks))
	}
}

func TestRecordClickForMissingProduct(t *testing.T) {
	db := openTestDB(t)
	if err := db.RecordClick("nope_missing", nil, nil); err != nil {
		t.Fatalf("click on missing product should still be recorded: %v", err)
	}
	stats, _ := db.GetStats()
	if stats.TotalClicks != 1 {
		t.Errorf("expected 1 recorded click, got %d", stats.TotalClicks)
	}
}

func TestTopClickedProducts(t *testing.T) {
	db := openTestDB(t)
	s := testStore(t, db, "getfpv")

	for _, name := range []string{"A", "B"} {
		db.UpsertProduct(&Product{
			ID: ProductID(s.Name, name), Name: name,
			Link: "http://getfpv.test/p/" + name, StoreID: s.ID,
		})
	}
	db.RecordClick(ProductID(s.Name, "B"), nil, nil)
	db.RecordClick(ProductID(s.Name, "B"), nil, nil)
	db.RecordClick(ProductID(s.Name, "A"), nil, nil)

	top, err := db.TopClickedProducts(5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(top) != 2 {
		t.Fatalf("expected 2 products, got %d", len(top))
	}
	if top[0].Product.Name != "B" || top[0].Clicks != 2 {
		t.Errorf("expected B with 2 clicks first, got %s with %d", top[0].Product.Name, top[0].Clicks)
	}
}

func TestStats(t *testing.T) {
	db := openTestDB(t)
	s := testStore(t, db, "getfpv")
	db.SetScrapable(s.ID)
	db.InsertImportQuery("motor", PriorityHigh, nil)

	avail := true
	db.UpsertProduct(&Product{
		ID: ProductID(s.Name, "X"), Name: "X",
		Link: "http://getfpv.test/p/x", StoreID: s.ID, Available: &avail,
	})

	stats, err := db.GetStats()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.TotalStores != 1 || stats.ScrapableStores != 1 {
		t.Errorf("wrong store counts: %+v", stats)
	}
	if stats.ActiveQueries != 1 {
		t.Errorf("wrong query count: %+v", stats)
	}
	if stats.ActiveProducts != 1 || stats.AvailableProducts != 1 {
		t.Errorf("wrong product counts: %+v", stats)
	}
}
