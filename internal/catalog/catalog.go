// Package catalog holds the static reference data requests and providers are
// classified by: trades, the specialties of each trade, and service zones.
package catalog

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"slices"
	"sync"
)

//go:embed catalog.json
var defaultCatalog []byte

// Trade is a rubro and its especialidades.
type Trade struct {
	Name        string   `json:"name"`
	Specialties []string `json:"specialties"`
}

type document struct {
	Trades []Trade  `json:"trades"`
	Zones  []string `json:"zones"`
}

// Catalog answers membership questions about the reference data. Lookups are
// exact matches on the display names.
type Catalog struct {
	mu          sync.RWMutex
	trades      []Trade
	specialties map[string]map[string]struct{}
	zones       []string
	zoneSet     map[string]struct{}
}

// Default returns the catalog compiled into the binary.
func Default() (*Catalog, error) {
	return Parse(defaultCatalog)
}

// LoadFile reads a catalog from a JSON file with the same layout as the
// embedded one.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file %s: %w", path, err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Catalog, error) {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	if len(doc.Trades) == 0 || len(doc.Zones) == 0 {
		return nil, fmt.Errorf("catalog needs at least one trade and one zone")
	}

	c := &Catalog{}
	c.replace(doc)
	return c, nil
}

func (c *Catalog) replace(doc document) {
	specialties := make(map[string]map[string]struct{}, len(doc.Trades))
	for _, t := range doc.Trades {
		set := make(map[string]struct{}, len(t.Specialties))
		for _, s := range t.Specialties {
			set[s] = struct{}{}
		}
		specialties[t.Name] = set
	}
	zoneSet := make(map[string]struct{}, len(doc.Zones))
	for _, z := range doc.Zones {
		zoneSet[z] = struct{}{}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.trades = doc.Trades
	c.specialties = specialties
	c.zones = doc.Zones
	c.zoneSet = zoneSet
}

func (c *Catalog) ValidTrade(trade string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.specialties[trade]
	return ok
}

// ValidSpecialty reports whether specialty belongs to trade.
func (c *Catalog) ValidSpecialty(trade, specialty string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.specialties[trade][specialty]
	return ok
}

func (c *Catalog) ValidZone(zone string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.zoneSet[zone]
	return ok
}

// Trades returns a copy of the trades in catalog order.
func (c *Catalog) Trades() []Trade {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Trade, len(c.trades))
	for i, t := range c.trades {
		out[i] = Trade{Name: t.Name, Specialties: slices.Clone(t.Specialties)}
	}
	return out
}

// Zones returns a copy of the zones in catalog order.
func (c *Catalog) Zones() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.zones)
}
