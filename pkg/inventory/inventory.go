// Package inventory provides read-only views of the player's items and stats.
package inventory

import (
	"slices"

	"github.com/jwebster45206/novel-engine/pkg/content"
)

const (
	// SlotCount is the size of the inventory grid.
	SlotCount = 25

	// TabAll shows every occupied slot.
	TabAll = "All"
)

// Slot is an occupied inventory slot.
type Slot struct {
	ItemID   string `json:"item_id"`
	Quantity int    `json:"quantity"`
}

// StartingItems is what a new player carries.
func StartingItems() []Slot {
	return []Slot{
		{ItemID: "health_potion", Quantity: 5},
		{ItemID: "mana_potion", Quantity: 3},
		{ItemID: "iron_ore", Quantity: 12},
		{ItemID: "ancient_sword", Quantity: 1},
	}
}

// Entry is an occupied slot joined with its catalog item.
type Entry struct {
	Index int          `json:"index"`
	Slot  Slot         `json:"slot"`
	Item  content.Item `json:"item"`
	Known bool         `json:"known"` // false when the item id is not in the catalog
}

// Inventory is a fixed grid of slots over an item catalog.
type Inventory struct {
	slots []*Slot
	items map[string]content.Item
}

// New fills the first slots with start. Entries past SlotCount are dropped.
func New(items map[string]content.Item, start []Slot) *Inventory {
	inv := &Inventory{
		slots: make([]*Slot, SlotCount),
		items: items,
	}
	for i, s := range start {
		if i >= SlotCount {
			break
		}
		inv.slots[i] = &s
	}
	return inv
}

// Slots returns a copy of the grid. Empty slots are nil.
func (inv *Inventory) Slots() []*Slot {
	out := make([]*Slot, len(inv.slots))
	for i, s := range inv.slots {
		if s != nil {
			cp := *s
			out[i] = &cp
		}
	}
	return out
}

// ByTab lists occupied slots whose item type matches tab. TabAll matches every
// occupied slot, including items missing from the catalog.
func (inv *Inventory) ByTab(tab string) []Entry {
	var out []Entry
	for i, s := range inv.slots {
		if s == nil {
			continue
		}
		item, known := inv.items[s.ItemID]
		if tab != TabAll && (!known || item.ItemType != tab) {
			continue
		}
		out = append(out, Entry{Index: i, Slot: *s, Item: item, Known: known})
	}
	return out
}

// Tabs is TabAll followed by the catalog's item types in sorted order.
func (inv *Inventory) Tabs() []string {
	var types []string
	for _, it := range inv.items {
		if it.ItemType != "" && !slices.Contains(types, it.ItemType) {
			types = append(types, it.ItemType)
		}
	}
	slices.Sort(types)
	return append([]string{TabAll}, types...)
}
