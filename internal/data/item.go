package data

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ItemInfo is one catalog entry. Items absent from the catalog are treated
// as tradeable — the catalog is a deny-list, not an ownership check.
type ItemInfo struct {
	ID        string `yaml:"id"`
	Name      string `yaml:"name"`
	Tradeable bool   `yaml:"tradeable"`
}

// ItemTable holds the item catalog loaded from YAML.
type ItemTable struct {
	items map[string]*ItemInfo
}

// LoadItemTable reads the item catalog.
func LoadItemTable(path string) (*ItemTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read item catalog %s: %w", path, err)
	}

	var list []*ItemInfo
	if err := yaml.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("parse item catalog %s: %w", path, err)
	}

	t := &ItemTable{items: make(map[string]*ItemInfo, len(list))}
	for _, it := range list {
		if it.ID == "" {
			return nil, fmt.Errorf("item catalog %s: entry with empty id", path)
		}
		t.items[it.ID] = it
	}
	return t, nil
}

// Get returns the catalog entry for an item id, or nil if unknown.
func (t *ItemTable) Get(id string) *ItemInfo {
	return t.items[id]
}

// FirstNonTradeable returns the first item id in the list whose catalog
// entry forbids trading, or "" if all pass.
func (t *ItemTable) FirstNonTradeable(itemIDs []string) string {
	for _, id := range itemIDs {
		if it := t.items[id]; it != nil && !it.Tradeable {
			return id
		}
	}
	return ""
}

// Count returns the number of catalog entries.
func (t *ItemTable) Count() int {
	return len(t.items)
}
