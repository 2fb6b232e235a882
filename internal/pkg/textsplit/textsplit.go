package textsplit

import "strings"

const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
)

// Chunk is one span of a page. Page is 0 when the source has no pages.
type Chunk struct {
	Text string
	Page int
}

// separators in preference order when choosing where a window ends.
var separators = []string{"\n\n", "\n", ". ", " "}

type Splitter struct {
	size    int
	overlap int
}

func New(size, overlap int) *Splitter {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 || overlap >= size {
		overlap = size / 5
	}
	return &Splitter{size: size, overlap: overlap}
}

// Split cuts text into overlapping windows of at most size runes, preferring
// to end a window on a separator in its second half.
func (s *Splitter) Split(text string) []string {
	runes := []rune(strings.TrimSpace(text))
	if len(runes) == 0 {
		return nil
	}

	var chunks []string
	for start := 0; start < len(runes); {
		end := start + s.size
		if end >= len(runes) {
			end = len(runes)
		} else {
			end = s.cut(runes, start, end)
		}

		if chunk := strings.TrimSpace(string(runes[start:end])); chunk != "" {
			chunks = append(chunks, chunk)
		}
		if end == len(runes) {
			break
		}

		next := end - s.overlap
		if next <= start {
			next = end
		}
		start = next
	}
	return chunks
}

// SplitPages splits every page independently so each chunk keeps its page.
func (s *Splitter) SplitPages(pages []Chunk) []Chunk {
	var out []Chunk
	for _, p := range pages {
		for _, text := range s.Split(p.Text) {
			out = append(out, Chunk{Text: text, Page: p.Page})
		}
	}
	return out
}

func (s *Splitter) cut(runes []rune, start, end int) int {
	window := string(runes[start:end])
	half := len(window) / 2
	for _, sep := range separators {
		if idx := strings.LastIndex(window, sep); idx >= half {
			return start + len([]rune(window[:idx+len(sep)]))
		}
	}
	return end
}
