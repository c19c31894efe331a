package cmd

import "sort"

func sortedStrings(s []string) []string {
	sort.Strings(s)
	return s
}

func shortChecksum(sum string) string {
	if len(sum) > 8 {
		return sum[:8] + "..."
	}
	return sum
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n-3] + "..."
	}
	return s
}
