package menu

import (
	"fmt"

	"teapot/internal/models"
)

// Tabs shown by the menu browser
const (
	TabDrinks = "drinks"
	TabSnacks = "snacks"
)

// Catalog is the static, read-only list of purchasable items grouped by tab
type Catalog struct {
	tabs   []string
	byTab  map[string][]models.MenuItem
	byName map[string]models.MenuItem
}

// New builds a catalog from tab name to items. Item names must be unique across the whole catalog.
func New(tabs []string, items map[string][]models.MenuItem) (*Catalog, error) {
	c := &Catalog{
		tabs:   make([]string, 0, len(tabs)),
		byTab:  make(map[string][]models.MenuItem, len(tabs)),
		byName: make(map[string]models.MenuItem),
	}

	for _, tab := range tabs {
		list, ok := items[tab]
		if !ok {
			return nil, fmt.Errorf("tab %q has no items", tab)
		}
		for _, item := range list {
			if item.Name == "" {
				return nil, fmt.Errorf("tab %q contains an item without a name", tab)
			}
			if _, dup := c.byName[item.Name]; dup {
				return nil, fmt.Errorf("duplicate menu item %q", item.Name)
			}
			c.byName[item.Name] = item
		}
		c.tabs = append(c.tabs, tab)
		c.byTab[tab] = append([]models.MenuItem(nil), list...)
	}

	return c, nil
}

// Default returns the café's built-in menu
func Default() *Catalog {
	c, err := New([]string{TabDrinks, TabSnacks}, map[string][]models.MenuItem{
		TabDrinks: drinks,
		TabSnacks: snacks,
	})
	if err != nil {
		panic(err)
	}
	return c
}

// Tabs returns the tab names in display order
func (c *Catalog) Tabs() []string {
	return append([]string(nil), c.tabs...)
}

// Items returns the items of one tab
func (c *Catalog) Items(tab string) ([]models.MenuItem, bool) {
	list, ok := c.byTab[tab]
	if !ok {
		return nil, false
	}
	return append([]models.MenuItem(nil), list...), true
}

// All returns every item, tab by tab
func (c *Catalog) All() []models.MenuItem {
	var all []models.MenuItem
	for _, tab := range c.tabs {
		all = append(all, c.byTab[tab]...)
	}
	return all
}

// Lookup finds an item by name
func (c *Catalog) Lookup(name string) (models.MenuItem, bool) {
	item, ok := c.byName[name]
	return item, ok
}

var drinks = []models.MenuItem{
	{
		Name:        "Passion Fruit Smoothie",
		Price:       "$5.99",
		Description: "Fresh passion fruit blended with ice and honey",
		Image:       "/images/passion.jpg",
		Category:    "Smoothies",
	},
	{
		Name:        "Mango Lassi",
		Price:       "$4.99",
		Description: "Creamy mango smoothie with a hint of cardamom",
		Image:       "/images/mango.jpg",
		Category:    "Smoothies",
	},
	{
		Name:        "Orange Juice",
		Price:       "$3.99",
		Description: "Freshly squeezed orange juice with a touch of honey",
		Image:       "/images/orange.jpg",
		Category:    "Juices",
	},
	{
		Name:        "Apple Cider",
		Price:       "$4.99",
		Description: "Fresh apple juice with cinnamon and ginger",
		Image:       "/images/apple.jpg",
		Category:    "Juices",
	},
	{
		Name:        "Watermelon Cooler",
		Price:       "$5.99",
		Description: "Refreshing watermelon drink with mint and lime",
		Image:       "/images/watermelon.jpg",
		Category:    "Coolers",
	},
	{
		Name:        "Avocado Smoothie",
		Price:       "$6.99",
		Description: "Creamy avocado with banana and honey",
		Image:       "/images/avocado.jpg",
		Category:    "Smoothies",
	},
}

var snacks = []models.MenuItem{
	{
		Name:        "Mahamri",
		Price:       "$2.99",
		Description: "Traditional Kenyan sweet bread, perfect with tea",
		Image:       "/images/mahamri.jpg",
		Category:    "Breads",
	},
	{
		Name:        "Samosas",
		Price:       "$3.99",
		Description: "Crispy pastry filled with spiced vegetables",
		Image:       "/images/samosas.jpg",
		Category:    "Snacks",
	},
	{
		Name:        "Bhajia",
		Price:       "$2.49",
		Description: "Crispy battered potato fritters with spices",
		Image:       "/images/bhajia.jpg",
		Category:    "Snacks",
	},
	{
		Name:        "Matobosho",
		Price:       "$3.99",
		Description: "Crispy, spicy potato chips with a hint of chili",
		Image:       "/images/matobosho.jpg",
		Category:    "Chips",
	},
}
