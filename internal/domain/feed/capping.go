package feed

// Sponsored placement cap: no contiguous run of WindowSize output items may
// contain more than MaxSponsoredPerWindow sponsored entries.
const (
	WindowSize            = 12
	MaxSponsoredPerWindow = 2
)

// ApplySponsoredCapping admits items in order until pageSize is reached,
// skipping any sponsored item that would overfill the trailing window of
// already-admitted output. The window slides over the OUTPUT list, so the
// invariant holds for every contiguous window regardless of page
// boundaries. Skipped sponsored items are dropped from this page, not
// deferred. Relative order of admitted items is preserved.
func ApplySponsoredCapping(items []Item, pageSize int) []Item {
	if pageSize <= 0 {
		return []Item{}
	}

	out := make([]Item, 0, min(pageSize, len(items)))
	for _, item := range items {
		if len(out) >= pageSize {
			break
		}
		if !item.Sponsored {
			out = append(out, item)
			continue
		}
		if sponsoredInTail(out, WindowSize-1) < MaxSponsoredPerWindow {
			out = append(out, item)
		}
	}
	return out
}

// sponsoredInTail counts sponsored items among the last n admitted entries,
// i.e. the window that would form if one more item were appended.
func sponsoredInTail(out []Item, n int) int {
	start := len(out) - n
	if start < 0 {
		start = 0
	}
	count := 0
	for _, item := range out[start:] {
		if item.Sponsored {
			count++
		}
	}
	return count
}
