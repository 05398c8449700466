package lookup

import "strings"

// The upstream API's nesting varies between responses, so locator extraction
// is an ordered list of shape rules; the first non-empty match wins and an
// unrecognized shape yields "".
type locatorRule func(payload map[string]any) string

var locatorRules = []locatorRule{
	directLocator,
	itemListLocator,
}

func ExtractLocator(payload map[string]any) string {
	for _, rule := range locatorRules {
		if v := rule(payload); v != "" {
			return v
		}
	}
	return ""
}

// Shape 1: {"pdffile": "..."}
func directLocator(payload map[string]any) string {
	return cleanString(payload["pdffile"])
}

// Shape 2: {"items":[{"pdffile":"..."}]}
// Shape 3: {"items":[{"pdffiles":[{"pdffile":"..."}]}]}
func itemListLocator(payload map[string]any) string {
	items, ok := payload["items"].([]any)
	if !ok {
		return ""
	}
	for _, rawItem := range items {
		item, ok := rawItem.(map[string]any)
		if !ok {
			continue
		}
		if v := cleanString(item["pdffile"]); v != "" {
			return v
		}
		files, ok := item["pdffiles"].([]any)
		if !ok {
			continue
		}
		for _, rawFile := range files {
			file, ok := rawFile.(map[string]any)
			if !ok {
				continue
			}
			if v := cleanString(file["pdffile"]); v != "" {
				return v
			}
		}
	}
	return ""
}

func cleanString(v any) string {
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(s)
}
