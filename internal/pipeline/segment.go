package pipeline

// Segment splits text into attendance blocks. A block starts at a service order
// marker and runs up to the next marker or the end of text; anything before the
// first marker is dropped.
func Segment(text string) []string {
	locs := reBlockMarker.FindAllStringIndex(text, -1)
	blocks := make([]string, 0, len(locs))
	for i, loc := range locs {
		end := len(text)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		blocks = append(blocks, text[loc[0]:end])
	}
	return blocks
}
