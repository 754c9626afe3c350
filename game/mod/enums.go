package mod

import "fmt"

// Element is a damage element.
type Element int

const (
	ElementNormal Element = iota
	ElementFire
	ElementIce
	ElementAcid
	ElementLightning
	ElementNecrotic
	ElementRadiant

	elementCount
)

// ElementCount is the number of declared elements.
const ElementCount = int(elementCount)

var elementNames = [elementCount]string{
	"normal", "fire", "ice", "acid", "lightning", "necrotic", "radiant",
}

func (e Element) String() string {
	if !e.Valid() {
		return fmt.Sprintf("element(%d)", int(e))
	}
	return elementNames[e]
}

func (e Element) Valid() bool { return e >= 0 && e < elementCount }

func (e Element) MarshalText() ([]byte, error) {
	if !e.Valid() {
		return nil, fmt.Errorf("mod: invalid element %d", int(e))
	}
	return []byte(e.String()), nil
}

func (e *Element) UnmarshalText(b []byte) error {
	v, ok := ParseElement(string(b))
	if !ok {
		return fmt.Errorf("mod: unknown element %q", string(b))
	}
	*e = v
	return nil
}

// ParseElement resolves an element by name.
func ParseElement(s string) (Element, bool) {
	for i, n := range elementNames {
		if n == s {
			return Element(i), true
		}
	}
	return 0, false
}

// Slot is the category of a mod group on a weapon.
type Slot int

const (
	SlotBarrel Slot = iota
	SlotGrip
	SlotStock
	SlotOptic
	SlotMagazine

	slotCount
)

// SlotCount is the number of mod groups a weapon owns.
const SlotCount = int(slotCount)

var slotNames = [slotCount]string{"barrel", "grip", "stock", "optic", "magazine"}

func (s Slot) String() string {
	if !s.Valid() {
		return fmt.Sprintf("slot(%d)", int(s))
	}
	return slotNames[s]
}

func (s Slot) Valid() bool { return s >= 0 && s < slotCount }

func (s Slot) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("mod: invalid slot %d", int(s))
	}
	return []byte(s.String()), nil
}

func (s *Slot) UnmarshalText(b []byte) error {
	v, ok := ParseSlot(string(b))
	if !ok {
		return fmt.Errorf("mod: unknown slot %q", string(b))
	}
	*s = v
	return nil
}

// ParseSlot resolves a slot by name.
func ParseSlot(s string) (Slot, bool) {
	for i, n := range slotNames {
		if n == s {
			return Slot(i), true
		}
	}
	return 0, false
}

// Rarity is a loot quality tier. RarityNone means nothing was selected.
type Rarity int

const (
	RarityNone Rarity = iota
	RarityRare
	RarityMediumRare
	RarityMedium
	RarityMediumWell
	RarityWellDone

	rarityCount
)

var rarityNames = [rarityCount]string{
	"none", "rare", "medium_rare", "medium", "medium_well", "well_done",
}

func (r Rarity) String() string {
	if r < 0 || r >= rarityCount {
		return fmt.Sprintf("rarity(%d)", int(r))
	}
	return rarityNames[r]
}

func (r Rarity) MarshalText() ([]byte, error) {
	if r < 0 || r >= rarityCount {
		return nil, fmt.Errorf("mod: invalid rarity %d", int(r))
	}
	return []byte(r.String()), nil
}

func (r *Rarity) UnmarshalText(b []byte) error {
	v, ok := ParseRarity(string(b))
	if !ok {
		return fmt.Errorf("mod: unknown rarity %q", string(b))
	}
	*r = v
	return nil
}

// ParseRarity resolves a rarity by name.
func ParseRarity(s string) (Rarity, bool) {
	for i, n := range rarityNames {
		if n == s {
			return Rarity(i), true
		}
	}
	return 0, false
}
