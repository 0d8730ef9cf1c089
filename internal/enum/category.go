package enum

import "strings"

type Category string

const (
	CategoryInbox                Category = "INBOX"
	CategoryWork                 Category = "WORK"
	CategoryFinance              Category = "FINANCE"
	CategoryTaxes                Category = "TAXES"
	CategoryTravel               Category = "TRAVEL"
	CategoryShoppingOrders       Category = "SHOPPING_ORDERS"
	CategoryNewsletters          Category = "NEWSLETTERS"
	CategoryPromotions           Category = "PROMOTIONS"
	CategorySocial               Category = "SOCIAL"
	CategoryForums               Category = "FORUMS"
	CategoryComplaintsSuggestion Category = "COMPLAINTS_SUGGESTIONS"
	CategoryPersonal             Category = "PERSONAL"
	CategorySpam                 Category = "SPAM"
	CategoryOther                Category = "OTHER"
	CategoryUpdates              Category = "UPDATES"
)

const DefaultCategory = CategoryInbox

// Categories is the closed set offered to the classifier, in prompt order.
var Categories = []Category{
	CategoryInbox,
	CategoryWork,
	CategoryFinance,
	CategoryTaxes,
	CategoryTravel,
	CategoryShoppingOrders,
	CategoryNewsletters,
	CategoryPromotions,
	CategorySocial,
	CategoryForums,
	CategoryComplaintsSuggestion,
	CategoryPersonal,
	CategorySpam,
	CategoryOther,
	CategoryUpdates,
}

func (c Category) String() string {
	return string(c)
}

func (c Category) IsValid() bool {
	for _, category := range Categories {
		if c == category {
			return true
		}
	}
	return false
}

// ParseCategory accepts a category name in any case; ok is false for values outside the enumeration.
func ParseCategory(s string) (Category, bool) {
	c := Category(strings.ToUpper(strings.TrimSpace(s)))
	if !c.IsValid() {
		return DefaultCategory, false
	}
	return c, true
}

func CategoryNames() []string {
	names := make([]string, len(Categories))
	for i, c := range Categories {
		names[i] = string(c)
	}
	return names
}
