package validate

import (
	"github.com/MrWong99/npcforge/internal/record"
)

// LegacyShopPaths are the superseded merchant shapes: a top-level "shop"
// block, a top-level "shopItems" list and "shopConfig.inventory".
var LegacyShopPaths = []string{"shop", "shopItems", "shopConfig.inventory"}

// HasLegacyShop reports whether rec still uses a superseded shop shape.
func HasLegacyShop(rec record.Record) bool {
	for _, p := range LegacyShopPaths {
		if _, ok := present(rec, p); ok {
			return true
		}
	}
	return false
}

// MigrateLegacyShop returns a copy of rec with legacy shop data moved into
// shopId, shopType and shopConfig.items. Existing current-format values win
// over legacy ones; legacy items are appended after current items without
// duplicates. rec itself is not modified.
func MigrateLegacyShop(rec record.Record) record.Record {
	out := rec.Clone()
	if out == nil {
		return nil
	}

	var items []any
	items = append(items, out.Sequence("shopConfig.items")...)
	addItems := func(seq []any) {
		for _, it := range seq {
			if s, ok := it.(string); ok && containsString(items, s) {
				continue
			}
			items = append(items, it)
		}
	}

	if shop, ok := out["shop"].(map[string]any); ok {
		if id, ok := shop["id"].(string); ok && out.StringAt("shopId") == "" {
			out.MustSet("shopId", id)
		}
		if typ, ok := shop["type"].(string); ok && typ != "" {
			if _, has := present(out, "shopType"); !has || out.StringAt("shopType") == "" {
				out.MustSet("shopType", typ)
			}
		}
		if seq, ok := shop["items"].([]any); ok {
			addItems(seq)
		}
	}
	if seq, ok := out["shopItems"].([]any); ok {
		addItems(seq)
	}
	inv, _ := out.MustGet("shopConfig.inventory")
	if seq, ok := inv.([]any); ok {
		addItems(seq)
	}

	delete(out, "shop")
	delete(out, "shopItems")
	out.MustSet("shopConfig.items", append([]any{}, items...))
	_ = out.Delete("shopConfig.inventory")
	return out
}

func containsString(seq []any, s string) bool {
	for _, e := range seq {
		if es, ok := e.(string); ok && es == s {
			return true
		}
	}
	return false
}
