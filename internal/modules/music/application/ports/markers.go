package ports

// MarkerEmojis is the fixed ordered set of marker symbols bound to
// search candidates, in candidate order. Search results render exactly
// the first len(MarkerEmojis) candidates.
var MarkerEmojis = []string{"1️⃣", "2️⃣", "3️⃣"}

// MarkerIndex returns the candidate index for a marker emoji, or -1
// when the emoji is not a marker. Arbitrary reactions arrive from
// unrelated emoji all the time; -1 means "not ours, ignore".
func MarkerIndex(emoji string) int {
	for i, m := range MarkerEmojis {
		if m == emoji {
			return i
		}
	}
	return -1
}
