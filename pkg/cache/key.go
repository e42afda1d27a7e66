package cache

import (
	"sort"
	"strconv"
	"strings"
)

// DefaultNamespace prefixes every storefront cache key.
const DefaultNamespace = "novaMart"

// ProductPrefix returns the key prefix shared by all product entries.
func ProductPrefix(ns string) string {
	return ns + "_product_"
}

// BatchPrefix returns the key prefix shared by last-batch records.
func BatchPrefix(ns string) string {
	return ns + "_batch_"
}

// CategoryPrefix returns the key prefix shared by single-category lists.
func CategoryPrefix(ns string) string {
	return ns + "_category_"
}

// MultiCategoryPrefix returns the key prefix shared by merged category lists.
func MultiCategoryPrefix(ns string) string {
	return ns + "_multi_"
}

// ProductKey returns the key of a single product.
//
// Example:
//
//	novaMart_product_42
func ProductKey(ns string, id int) string {
	return ProductPrefix(ns) + strconv.Itoa(id)
}

// CategoryKey returns the key of one category's product list.
// The list limit is deliberately not part of the key.
func CategoryKey(ns, category string) string {
	return CategoryPrefix(ns) + category
}

// MultiCategoryKey returns the composite key of a merged category list.
// Categories are sorted before joining so the key is order-independent.
// The input slice is not modified.
//
// Example:
//
//	MultiCategoryKey("novaMart", []string{"b", "a"}) == "novaMart_multi_a,b"
func MultiCategoryKey(ns string, categories []string) string {
	return MultiCategoryPrefix(ns) + strings.Join(SortedCategories(categories), ",")
}

// CategoryIndexKey returns the key of the category index.
func CategoryIndexKey(ns string) string {
	return ns + "_catindex"
}

// BatchKey returns the key of the last-requested-batch record.
// There is one per namespace; every batch overwrites it.
//
// Example:
//
//	novaMart_batch_last
func BatchKey(ns string) string {
	return BatchPrefix(ns) + "last"
}

// SortedCategories returns a sorted copy of categories.
func SortedCategories(categories []string) []string {
	sorted := make([]string, len(categories))
	copy(sorted, categories)
	sort.Strings(sorted)
	return sorted
}
