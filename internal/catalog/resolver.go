package catalog

import "strings"

// Resolve maps free-text item names returned by the assistant onto concrete
// catalog records. Matching is a case-insensitive exact comparison against the
// full item name; names with no match are dropped. Output follows the input
// name order and is deduplicated by item identity.
func Resolve(names []string, items []Item) []Item {
	if len(names) == 0 || len(items) == 0 {
		return nil
	}

	var out []Item
	seen := make(map[string]struct{}, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		item, ok := matchByName(name, items)
		if !ok {
			continue
		}
		key := identity(item)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, item)
	}
	return out
}

func matchByName(name string, items []Item) (Item, bool) {
	for _, item := range items {
		if strings.EqualFold(strings.TrimSpace(item.Name), name) {
			return item, true
		}
	}
	return Item{}, false
}

func identity(item Item) string {
	if item.ID != "" {
		return item.ID
	}
	return strings.ToLower(strings.TrimSpace(item.Name))
}
