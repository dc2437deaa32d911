package pipeline

import (
	"regexp"
	"strings"

	"github.com/jdkato/prose/v2"
)

// Chunk is one bounded slice of the source text submitted to the oracle
// independently. Start and End are character (rune) offsets into the full
// normalized text, used only for best-effort span citations.
type Chunk struct {
	Text  string
	Start int
	End   int
}

var crlfPattern = regexp.MustCompile(`\r\n?`)

// SegmentText splits text into fixed-size character windows with overlap, so
// facts straddling a window boundary appear whole in at least one chunk.
func SegmentText(text string, chunkSize, overlap int) []Chunk {
	text = crlfPattern.ReplaceAllString(text, "\n")
	runes := []rune(text)
	n := len(runes)
	if n == 0 || chunkSize <= 0 {
		return nil
	}

	var chunks []Chunk
	i := 0
	for i < n {
		end := i + chunkSize
		if end > n {
			end = n
		}
		chunks = append(chunks, Chunk{Text: string(runes[i:end]), Start: i, End: end})
		if end >= n {
			break
		}
		i = end - overlap
		if i < 0 {
			i = 0
		}
	}
	return chunks
}

// SegmentSentences packs whole sentences into windows of roughly chunkSize
// characters, carrying tail sentences forward until the requested overlap is
// covered. Sentence boundaries come from prose's tokenizer, which handles
// abbreviations better than punctuation splitting. Offsets are cumulative
// over packed content and therefore approximate.
func SegmentSentences(text string, chunkSize, overlap int) ([]Chunk, error) {
	text = crlfPattern.ReplaceAllString(text, "\n")
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	doc, err := prose.NewDocument(text,
		prose.WithExtraction(false),
		prose.WithTagging(false))
	if err != nil {
		return nil, err
	}

	var chunks []Chunk
	var window []string
	windowLen := 0
	pos := 0
	fresh := false

	flush := func() {
		if len(window) == 0 {
			return
		}
		content := strings.Join(window, " ")
		chunks = append(chunks, Chunk{Text: content, Start: pos, End: pos + len([]rune(content))})

		// Carry sentences from the tail until the overlap budget is covered.
		var carry []string
		carryLen := 0
		for i := len(window) - 1; i >= 0 && carryLen < overlap; i-- {
			carry = append([]string{window[i]}, carry...)
			carryLen += len([]rune(window[i])) + 1
		}
		if carryLen >= windowLen {
			carry = nil
			carryLen = 0
		}
		pos += len([]rune(content)) - carryLen
		window = carry
		windowLen = carryLen
		fresh = false
	}

	for _, sent := range doc.Sentences() {
		s := strings.TrimSpace(sent.Text)
		if s == "" {
			continue
		}
		window = append(window, s)
		windowLen += len([]rune(s)) + 1
		fresh = true
		if windowLen >= chunkSize {
			flush()
		}
	}
	// A window holding only carried-over overlap is not a new chunk.
	if fresh && len(window) > 0 {
		content := strings.Join(window, " ")
		chunks = append(chunks, Chunk{Text: content, Start: pos, End: pos + len([]rune(content))})
	}
	return chunks, nil
}
