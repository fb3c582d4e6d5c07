package database

// Field identifies one scrapeable product attribute.
type Field string

const (
	FieldName         Field = "name"
	FieldPrice        Field = "price"
	FieldImage        Field = "image"
	FieldAvailability Field = "is_available"
	FieldVariations   Field = "variations"
	FieldDescription  Field = "description"
)

// DefaultFields are the attributes scraped when the caller does not ask for
// a specific set.
var DefaultFields = []Field{FieldName, FieldPrice, FieldImage}

// AllFields are the attributes scraped during a full product import.
var AllFields = []Field{
	FieldName, FieldPrice, FieldImage,
	FieldAvailability, FieldVariations, FieldDescription,
}

// FieldRule describes where one product attribute lives in a store's HTML.
type FieldRule struct {
	Selector string `json:"selector" yaml:"selector"`
	Kind     string `json:"kind" yaml:"kind"` // "class" or "id"
	Tag      string `json:"tag" yaml:"tag"`
	Match    string `json:"match,omitempty" yaml:"match,omitempty"` // availability regex
}

// SearchRules describes how to drive a store's search result pages.
type SearchRules struct {
	URL       string `json:"url" yaml:"url"`
	Tag       string `json:"tag" yaml:"tag"`
	Class     string `json:"class" yaml:"class"`
	Link      string `json:"link" yaml:"link"`
	NextPage  string `json:"next_page,omitempty" yaml:"next_page,omitempty"`
	PageParam string `json:"page_param,omitempty" yaml:"page_param,omitempty"`
}

// Store is the declarative scraping profile of one storefront.
type Store struct {
	ID                 int64
	Name               string
	Website            string
	Region             string // USA, ITA, CHN or OTH
	Locale             string // decimal-separator convention, e.g. "it_IT"
	Currency           string
	ScrapeWithJS       bool
	IsActive           bool
	IsScrapable        bool
	NotScrapableReason *string
	LastCheck          *string
	AffiliateParam     *string
	AffiliateID        *string
	Search             SearchRules
	Fields             map[Field]FieldRule
	CreatedAt          *string
}

// PriorityLow, PriorityMedium and PriorityHigh are the ImportQuery tiers.
const (
	PriorityLow    = 0
	PriorityMedium = 1
	PriorityHigh   = 2
)

// ImportQuery is an operator-defined search text imported from every store.
type ImportQuery struct {
	ID            int64
	Text          string
	Priority      int
	Clicks        int
	PriorityScore float64
	Brand         *string
	IsActive      bool
	CreatedAt     *string
}

// Score derives the ranking signal from the configured tier plus observed
// click volume.
func (q *ImportQuery) Score() float64 {
	return float64(q.Priority) + float64(q.Clicks)/100
}

// Product is one scraped catalog entry. Identity is the deterministic
// store+name key, so re-scraping the same product overwrites in place.
type Product struct {
	ID            string
	Name          string
	Description   *string
	Price         *float64
	Currency      *string
	Image         *string
	Link          string
	AffiliateLink *string
	Available     *bool // nil means unknown
	Brand         *string
	StoreID       int64
	ImportQueryID *int64
	ImportDate    *string
	IsActive      bool
	CreatedAt     *string
}

// ClickedProduct is a feedback event recorded when a user opens a product.
// The product reference survives soft-deletion of the product itself.
type ClickedProduct struct {
	ID          int64
	ProductID   *string
	SearchQuery *string
	Page        *int
	ClickedAt   *string
}

// ClickedCount pairs a product with its observed click volume.
type ClickedCount struct {
	Product Product
	Clicks  int
}

// Stats contains aggregate database statistics.
type Stats struct {
	TotalStores       int
	ScrapableStores   int
	TotalQueries      int
	ActiveQueries     int
	TotalProducts     int
	ActiveProducts    int
	AvailableProducts int
	TotalClicks       int
}
