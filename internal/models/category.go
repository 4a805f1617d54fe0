package models

// CategoryGroup lists the categories vendors can file a product under.
type CategoryGroup struct {
	Name       string   `json:"name"`
	Categories []string `json:"categories"`
}

var CategoryGroups = []CategoryGroup{
	{
		Name: "grocery",
		Categories: []string{
			"groceries", "dairy", "bakery", "beverages", "snacks", "fruits",
			"vegetables", "meat", "seafood", "frozen", "canned", "condiments",
		},
	},
	{
		Name: "medicine",
		Categories: []string{
			"medicines", "prescription", "otc", "supplements", "medical-devices",
			"personal-care", "baby-care", "first-aid",
		},
	},
}

func IsKnownCategory(category string) bool {
	for _, group := range CategoryGroups {
		for _, c := range group.Categories {
			if c == category {
				return true
			}
		}
	}
	return false
}
