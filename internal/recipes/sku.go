package recipes

import (
	"fmt"
	"strings"
)

const defaultSKUPrefix = "GEN"

// SKUPrefix is the upper-cased first three letters or digits of category.
func SKUPrefix(category string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(category) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			if b.Len() == 3 {
				break
			}
		}
	}
	if b.Len() == 0 {
		return defaultSKUPrefix
	}
	return b.String()
}

func FormatSKU(prefix string, n int) string {
	return fmt.Sprintf("%s-%04d", prefix, n)
}
