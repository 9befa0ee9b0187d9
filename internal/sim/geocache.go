package sim

import (
	"fmt"

	"github.com/dgraph-io/ristretto/v2"
)

// GeometryCache keeps generated level templates so rejoining clients and
// rooms that share a seed skip regeneration
type GeometryCache struct {
	cache *ristretto.Cache[string, *Geometry]
}

// NewGeometryCache creates a cache holding up to maxEntries templates
func NewGeometryCache(maxEntries int64) (*GeometryCache, error) {
	if maxEntries < 1 {
		maxEntries = 1
	}
	c, err := ristretto.NewCache(&ristretto.Config[string, *Geometry]{
		NumCounters: maxEntries * 10,
		MaxCost:     maxEntries,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("geometry cache: %w", err)
	}
	return &GeometryCache{cache: c}, nil
}

func geometryKey(seed uint32, profile Profile) string {
	return fmt.Sprintf("%d:%d:%g", seed, profile.Mode, profile.Width)
}

// Get returns a private copy of the level for seed with destroyed ids
// removed
func (c *GeometryCache) Get(seed uint32, profile Profile, destroyed DestroyedSet) *Geometry {
	if profile.Width <= 0 {
		profile.Width = TerrainWidth
	}
	key := geometryKey(seed, profile)
	tmpl, ok := c.cache.Get(key)
	if !ok {
		tmpl = GenerateSeeded(seed, profile, nil)
		c.cache.Set(key, tmpl, 1)
		c.cache.Wait()
	}
	return tmpl.Filtered(destroyed)
}

// Close releases the cache's goroutines
func (c *GeometryCache) Close() {
	c.cache.Close()
}

// Filtered deep-copies the mutable parts of the geometry, leaving out
// destroyed ids. The height field is shared since nothing mutates it.
func (g *Geometry) Filtered(destroyed DestroyedSet) *Geometry {
	out := &Geometry{Seed: g.Seed, Profile: g.Profile, Terrain: g.Terrain, Wind: g.Wind}
	out.Platforms = make([]*Platform, 0, len(g.Platforms))
	for _, p := range g.Platforms {
		if !destroyed.Has(p.ID) {
			out.Platforms = append(out.Platforms, p.Clone())
		}
	}
	out.Blocks = make([]*Block, 0, len(g.Blocks))
	for _, b := range g.Blocks {
		if !destroyed.Has(b.ID) {
			out.Blocks = append(out.Blocks, b.Clone())
		}
	}
	return out
}
