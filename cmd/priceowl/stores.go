package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/priceowl/priceowl/internal/database"
)

// storeProfile is the operator-facing YAML document describing one
// storefront. It maps one-to-one onto a database store row.
type storeProfile struct {
	Name         string `yaml:"name"`
	Website      string `yaml:"website"`
	Region       string `yaml:"region"`
	Locale       string `yaml:"locale"`
	Currency     string `yaml:"currency"`
	ScrapeWithJS bool   `yaml:"scrape_with_js"`
	Affiliate    struct {
		Param string `yaml:"param"`
		ID    string `yaml:"id"`
	} `yaml:"affiliate"`
	Search database.SearchRules                  `yaml:"search"`
	Fields map[database.Field]database.FieldRule `yaml:"fields"`
}

// loadStoreProfile reads and validates a profile file. Selector rules are
// checked here, at configuration load, not at extraction time.
func loadStoreProfile(path string) (*database.Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading profile: %w", err)
	}

	var p storeProfile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parsing profile: %w", err)
	}

	store := &database.Store{
		Name:         p.Name,
		Website:      p.Website,
		Region:       p.Region,
		Locale:       p.Locale,
		Currency:     p.Currency,
		ScrapeWithJS: p.ScrapeWithJS,
		Search:       p.Search,
		Fields:       p.Fields,
	}
	if store.Region == "" {
		store.Region = "OTH"
	}
	if store.Locale == "" {
		store.Locale = "it_IT"
	}
	if store.Currency == "" {
		store.Currency = "EUR"
	}
	if store.Fields == nil {
		store.Fields = map[database.Field]database.FieldRule{}
	}
	if p.Affiliate.Param != "" && p.Affiliate.ID != "" {
		store.AffiliateParam = &p.Affiliate.Param
		store.AffiliateID = &p.Affiliate.ID
	}

	if err := store.ValidateRules(); err != nil {
		return nil, fmt.Errorf("invalid profile %s: %w", path, err)
	}
	return store, nil
}

var storesCmd = &cobra.Command{
	Use:   "stores",
	Short: "Manage store profiles",
}

var storesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all configured stores",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		stores, err := db.GetActiveStores("")
		if err != nil {
			return err
		}
		if len(stores) == 0 {
			fmt.Println("No stores configured. Add one with: priceowl stores add <profile.yaml>")
			return nil
		}

		fmt.Println("Stores:")
		for _, s := range stores {
			state := "unchecked"
			if s.IsScrapable {
				state = "scrapable"
			} else if s.NotScrapableReason != nil {
				state = "not scrapable"
			}
			fmt.Printf("  [%d] %-20s %-4s %-14s %s\n", s.ID, s.Name, s.Region, state, s.Website)
		}
		return nil
	},
}

var storesAddCmd = &cobra.Command{
	Use:   "add [profile.yaml]",
	Short: "Add a store from a profile file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		store, err := loadStoreProfile(args[0])
		if err != nil {
			return err
		}

		id, err := db.InsertStore(store)
		if err != nil {
			return err
		}
		fmt.Printf("Added store [%d]: %s\n", id, store.Name)
		fmt.Printf("Run 'priceowl check %s' before importing from it.\n", store.Name)
		return nil
	},
}

var storesShowCmd = &cobra.Command{
	Use:   "show [name]",
	Short: "Show one store's profile and state",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		store, err := db.GetStoreByName(args[0])
		if err != nil {
			return err
		}
		if store == nil {
			return fmt.Errorf("store %q not found", args[0])
		}

		fmt.Printf("%s (%s)\n", store.Name, store.Website)
		fmt.Printf("  Region: %s  Locale: %s  Currency: %s\n", store.Region, store.Locale, store.Currency)
		fmt.Printf("  JS rendering: %v\n", store.ScrapeWithJS)
		if store.IsScrapable {
			fmt.Println("  Scrapable: yes")
		} else if store.NotScrapableReason != nil {
			fmt.Printf("  Scrapable: no (%s)\n", *store.NotScrapableReason)
		} else {
			fmt.Println("  Scrapable: unchecked")
		}
		if store.LastCheck != nil {
			fmt.Printf("  Last check: %s\n", *store.LastCheck)
		}
		fmt.Printf("  Search: %s (items %s.%s, link .%s)\n",
			store.Search.URL, store.Search.Tag, store.Search.Class, store.Search.Link)
		for field, rule := range store.Fields {
			if rule.Selector == "" {
				continue
			}
			fmt.Printf("  Field %-13s %s[%s=%s]\n", field+":", rule.Tag, rule.Kind, rule.Selector)
		}
		return nil
	},
}

func init() {
	storesCmd.AddCommand(storesListCmd)
	storesCmd.AddCommand(storesAddCmd)
	storesCmd.AddCommand(storesShowCmd)
}
