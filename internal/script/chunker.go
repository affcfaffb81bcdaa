package script

import "strings"

// MaxChunkBytes is the largest UTF-8 payload sent to the synthesis
// provider in one request.
const MaxChunkBytes = 4500

// Chunk splits text into ordered fragments, each at most MaxChunkBytes
// UTF-8 bytes. Text that already fits is returned as a single trimmed
// element. Splits happen at sentence boundaries first, then at word
// boundaries for oversized sentences. A single word longer than the
// limit is emitted as its own chunk; Oversized reports that case.
func Chunk(text string) []string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil
	}
	if len(trimmed) <= MaxChunkBytes {
		return []string{trimmed}
	}

	var chunks []string
	var current strings.Builder
	flush := func() {
		if current.Len() > 0 {
			chunks = append(chunks, current.String())
			current.Reset()
		}
	}
	add := func(piece string) {
		if current.Len() == 0 {
			current.WriteString(piece)
			return
		}
		if current.Len()+1+len(piece) > MaxChunkBytes {
			flush()
			current.WriteString(piece)
			return
		}
		current.WriteByte(' ')
		current.WriteString(piece)
	}

	for _, sentence := range splitSentences(trimmed) {
		if len(sentence) <= MaxChunkBytes {
			add(sentence)
			continue
		}
		// Sentence alone exceeds the limit: fall back to words.
		flush()
		for _, word := range strings.Fields(sentence) {
			if len(word) > MaxChunkBytes {
				// Unsplittable token, emitted as-is.
				flush()
				chunks = append(chunks, word)
				continue
			}
			add(word)
		}
		flush()
	}
	flush()
	return chunks
}

// Oversized reports whether a chunk violates the byte ceiling. Only a
// single unsplittable token can trigger this.
func Oversized(chunk string) bool {
	return len(chunk) > MaxChunkBytes
}

func isTerminator(c byte) bool {
	return c == '.' || c == '!' || c == '?'
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

// splitSentences cuts text at sentence-terminal punctuation followed by
// whitespace, keeping the punctuation with its sentence.
func splitSentences(text string) []string {
	var sentences []string
	start := 0
	i := 0
	for i < len(text) {
		if !isTerminator(text[i]) {
			i++
			continue
		}
		end := i + 1
		for end < len(text) && isTerminator(text[end]) {
			end++
		}
		if end < len(text) && !isSpace(text[end]) {
			// Mid-token punctuation ("3.14", "example.com").
			i = end
			continue
		}
		if s := strings.TrimSpace(text[start:end]); s != "" {
			sentences = append(sentences, s)
		}
		for end < len(text) && isSpace(text[end]) {
			end++
		}
		start = end
		i = end
	}
	if start < len(text) {
		if s := strings.TrimSpace(text[start:]); s != "" {
			sentences = append(sentences, s)
		}
	}
	return sentences
}
