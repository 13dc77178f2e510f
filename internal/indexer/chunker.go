// Package indexer loads guideline files, splits them into chunks and stores their embeddings.
package indexer

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/hyperjump/nutriguide/internal/fileid"
	"github.com/hyperjump/nutriguide/internal/models"
)

// DefaultChunkSize is the default chunk budget in characters.
const DefaultChunkSize = 1000

// separators in order of preference: paragraph, line, sentence, clause, word.
var separators = []string{"\n\n", "\n", ". ", "! ", "? ", ", ", " "}

// Chunker splits documents into size-bounded chunks that prefer natural boundaries.
type Chunker struct {
	maxSize int
	overlap int
}

// NewChunker creates a chunker with the given budget and overlap (in characters).
// Overlap must leave room for content; otherwise it is disabled.
func NewChunker(maxSize, overlap int) *Chunker {
	if maxSize <= 0 {
		maxSize = DefaultChunkSize
	}
	if overlap < 0 || overlap*2 >= maxSize {
		overlap = 0
	}
	return &Chunker{maxSize: maxSize, overlap: overlap}
}

// MaxSize returns the chunk budget in characters.
func (c *Chunker) MaxSize() int { return c.maxSize }

// Split chunks units. Units of the same source are joined (pages separated by a paragraph
// break) and chunked together; no chunk spans two sources. Sequence numbers restart at 0
// for each source.
func (c *Chunker) Split(units []models.DocumentUnit) []models.Chunk {
	var chunks []models.Chunk
	for _, doc := range groupBySource(units) {
		chunks = append(chunks, c.splitDocument(doc)...)
	}
	return chunks
}

type pageStart struct {
	offset int
	page   int
}

type sourceDoc struct {
	source   string
	category models.Category
	text     strings.Builder
	pages    []pageStart
}

func (d *sourceDoc) pageAt(offset int) int {
	page := 0
	for _, p := range d.pages {
		if p.offset > offset {
			break
		}
		page = p.page
	}
	return page
}

func groupBySource(units []models.DocumentUnit) []*sourceDoc {
	var docs []*sourceDoc
	bySource := make(map[string]*sourceDoc)
	for _, u := range units {
		doc, ok := bySource[u.Source]
		if !ok {
			doc = &sourceDoc{source: u.Source, category: u.Category}
			bySource[u.Source] = doc
			docs = append(docs, doc)
		}
		if doc.text.Len() > 0 {
			doc.text.WriteString("\n\n")
		}
		doc.pages = append(doc.pages, pageStart{offset: doc.text.Len(), page: u.Page})
		doc.text.WriteString(u.Text)
	}
	return docs
}

func (c *Chunker) splitDocument(doc *sourceDoc) []models.Chunk {
	budget := c.maxSize
	if c.overlap > 0 {
		// room for the overlap prefix and the space joining it
		budget = c.maxSize - c.overlap - 1
	}
	text := doc.text.String()
	bodies := merge(splitText(text, separators, budget), budget)

	var (
		chunks []models.Chunk
		prev   string
		offset int
	)
	for _, raw := range bodies {
		start := offset
		offset += len(raw)
		body := strings.TrimSpace(raw)
		if body == "" {
			continue
		}
		start += strings.Index(raw, body)
		seq := len(chunks)
		chunk := models.Chunk{
			ID:       fileid.ChunkID(doc.source, seq),
			Text:     body,
			Source:   doc.source,
			Category: doc.category,
			Page:     doc.pageAt(start),
			Sequence: seq,
		}
		if c.overlap > 0 && seq > 0 {
			if prefix := tail(prev, c.overlap); prefix != "" {
				chunk.Text = prefix + " " + body
				chunk.Overlap = utf8.RuneCountInString(prefix) + 1
			}
		}
		chunks = append(chunks, chunk)
		prev = body
	}
	return chunks
}

// Body returns the chunk text without the prefix repeated from the previous chunk.
func Body(c models.Chunk) string {
	if c.Overlap <= 0 {
		return c.Text
	}
	runes := []rune(c.Text)
	if c.Overlap >= len(runes) {
		return ""
	}
	return string(runes[c.Overlap:])
}

// splitText cuts text into pieces no longer than budget whose concatenation is text.
// It tries each separator in order and recurses with the finer ones on oversized parts.
func splitText(text string, seps []string, budget int) []string {
	if utf8.RuneCountInString(text) <= budget {
		return []string{text}
	}
	for i, sep := range seps {
		if !strings.Contains(text, sep) {
			continue
		}
		var out []string
		for _, part := range strings.SplitAfter(text, sep) {
			if part == "" {
				continue
			}
			if utf8.RuneCountInString(part) <= budget {
				out = append(out, part)
				continue
			}
			out = append(out, splitText(part, seps[i+1:], budget)...)
		}
		return out
	}
	return hardCut(text, budget)
}

func hardCut(text string, budget int) []string {
	runes := []rune(text)
	var out []string
	for len(runes) > budget {
		out = append(out, string(runes[:budget]))
		runes = runes[budget:]
	}
	if len(runes) > 0 {
		out = append(out, string(runes))
	}
	return out
}

// merge greedily packs consecutive pieces into bodies of at most budget characters.
func merge(pieces []string, budget int) []string {
	var (
		out    []string
		cur    strings.Builder
		curLen int
	)
	for _, p := range pieces {
		n := utf8.RuneCountInString(p)
		if curLen > 0 && curLen+n > budget {
			out = append(out, cur.String())
			cur.Reset()
			curLen = 0
		}
		cur.WriteString(p)
		curLen += n
	}
	if curLen > 0 {
		out = append(out, cur.String())
	}
	return out
}

// tail returns at most n trailing characters of s, starting at a word boundary.
func tail(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	cut := runes[len(runes)-n:]
	if unicode.IsSpace(runes[len(runes)-n-1]) {
		return strings.TrimSpace(string(cut))
	}
	for i, r := range cut {
		if unicode.IsSpace(r) {
			return strings.TrimSpace(string(cut[i:]))
		}
	}
	return ""
}
