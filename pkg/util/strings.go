package util

import (
	"strconv"
	"strings"
)

// ParseIntDefault parses string to int or returns default if empty/invalid.
func ParseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}

// ParseMarketList splits a comma separated market list, upper-cases each entry
// and prepends quote+"-" to bare symbols ("btc" -> "KRW-BTC"). Duplicates are dropped.
func ParseMarketList(raw, quote string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	seen := make(map[string]struct{})
	out := make([]string, 0, 4)
	for _, part := range strings.Split(raw, ",") {
		m := strings.ToUpper(strings.TrimSpace(part))
		if m == "" {
			continue
		}
		if !strings.Contains(m, "-") && quote != "" {
			m = quote + "-" + m
		}
		if _, dup := seen[m]; dup {
			continue
		}
		seen[m] = struct{}{}
		out = append(out, m)
	}
	return out
}
