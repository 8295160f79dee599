// Package category holds the fixed catalog of spending categories.
package category

// Category is one entry of the catalog. Expenses reference categories by
// Name.
type Category struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Icon  string `json:"icon,omitempty"`
	Color string `json:"color"`
}

// Fallback is returned for names that are not in the catalog.
var Fallback = Category{ID: "unknown", Name: "Unknown", Icon: "📦", Color: "#9CA3AF"}

var catalog = []Category{
	{ID: "housing", Name: "Housing", Icon: "🏠", Color: "#3B82F6"},
	{ID: "utilities", Name: "Utilities", Icon: "⚡", Color: "#FBBF24"},
	{ID: "food-groceries", Name: "Food & Groceries", Icon: "🍔", Color: "#10B981"},
	{ID: "dining-out", Name: "Dining Out & Restaurants", Icon: "🍽️", Color: "#F59E0B"},
	{ID: "transportation", Name: "Transportation", Icon: "🚗", Color: "#8B5CF6"},
	{ID: "healthcare", Name: "Healthcare & Pharmacy", Icon: "🏥", Color: "#EF4444"},
	{ID: "education", Name: "Education & Research", Icon: "🎓", Color: "#6366F1"},
	{ID: "subscriptions", Name: "Subscriptions", Icon: "📱", Color: "#EC4899"},
	{ID: "shopping", Name: "Shopping & Personal Care", Icon: "🛍️", Color: "#F472B6"},
	{ID: "entertainment", Name: "Entertainment & Leisure", Icon: "🎮", Color: "#A855F7"},
	{ID: "sports", Name: "Sports & Fitness", Icon: "🚴", Color: "#14B8A6"},
	{ID: "travel", Name: "Travel & Tourism", Icon: "✈️", Color: "#06B6D4"},
	{ID: "books", Name: "Books & Learning", Icon: "📚", Color: "#8B5CF6"},
	{ID: "technology", Name: "Technology & Gadgets", Icon: "💻", Color: "#6366F1"},
	{ID: "gifts", Name: "Gifts & Donations", Icon: "🎁", Color: "#EC4899"},
	{ID: "maintenance", Name: "Maintenance & Repairs", Icon: "🔧", Color: "#94A3B8"},
	{ID: "pets", Name: "Pets", Icon: "🐾", Color: "#F97316"},
	{ID: "bank-fees", Name: "Bank Fees & Taxes", Icon: "💳", Color: "#64748B"},
	{ID: "other", Name: "Other", Icon: "📦", Color: "#9CA3AF"},
}

var (
	byID   = make(map[string]int, len(catalog))
	byName = make(map[string]int, len(catalog))
)

func init() {
	for i, c := range catalog {
		byID[c.ID] = i
		byName[c.Name] = i
	}
}

// All returns the catalog in display order. The slice is a copy.
func All() []Category {
	out := make([]Category, len(catalog))
	copy(out, catalog)
	return out
}

// ByID looks up a category by its stable identifier.
func ByID(id string) (Category, bool) {
	i, ok := byID[id]
	if !ok {
		return Category{}, false
	}
	return catalog[i], true
}

// ByName looks up a category by display name.
func ByName(name string) (Category, bool) {
	i, ok := byName[name]
	if !ok {
		return Category{}, false
	}
	return catalog[i], true
}

// Resolve returns the category with the given name, or Fallback carrying
// that name when it is unknown.
func Resolve(name string) Category {
	if c, ok := ByName(name); ok {
		return c
	}
	c := Fallback
	c.Name = name
	return c
}

// ColorOf returns the display color for a category name.
func ColorOf(name string) string {
	return Resolve(name).Color
}
