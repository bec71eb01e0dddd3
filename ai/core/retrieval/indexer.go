package retrieval

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"strconv"
	"strings"

	"github.com/hrygo/alsassist/ai/core/embedding"
	"github.com/hrygo/alsassist/store"
)

// Chunking defaults, in runes.
const (
	DefaultChunkSize    = 500
	DefaultChunkOverlap = 50
	defaultBatchSize    = 16
)

// Document is a piece of support material before chunking.
type Document struct {
	Metadata map[string]string
	Source   string // stable identifier, e.g. the file name
	Content  string
}

// Indexer splits documents into chunks, embeds them and upserts them into the
// vector store. Chunk IDs are "<source>#<n>" so re-indexing replaces rows.
type Indexer struct {
	store     VectorStore
	embedder  embedding.Service
	chunkSize int
	overlap   int
	batchSize int
}

// NewIndexer creates an Indexer with the default chunking.
func NewIndexer(st VectorStore, embedder embedding.Service) *Indexer {
	return &Indexer{
		store:     st,
		embedder:  embedder,
		chunkSize: DefaultChunkSize,
		overlap:   DefaultChunkOverlap,
		batchSize: defaultBatchSize,
	}
}

// Index stores every document and returns the number of chunks written.
func (ix *Indexer) Index(ctx context.Context, docs []Document) (int, error) {
	type pending struct {
		id       string
		content  string
		metadata map[string]string
	}

	var chunks []pending
	for _, doc := range docs {
		for i, chunk := range SplitText(doc.Content, ix.chunkSize, ix.overlap) {
			metadata := map[string]string{
				"source":      doc.Source,
				"chunk_index": strconv.Itoa(i),
			}
			for k, v := range doc.Metadata {
				metadata[k] = v
			}
			chunks = append(chunks, pending{
				id:       fmt.Sprintf("%s#%d", doc.Source, i),
				content:  chunk,
				metadata: metadata,
			})
		}
	}

	written := 0
	for start := 0; start < len(chunks); start += ix.batchSize {
		end := min(start+ix.batchSize, len(chunks))
		batch := chunks[start:end]

		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = c.content
		}
		vectors, err := ix.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return written, fmt.Errorf("failed to embed chunks %d-%d: %w", start, end, err)
		}

		for i, c := range batch {
			if _, err := ix.store.UpsertResource(ctx, &store.Resource{
				ID:        c.id,
				Content:   c.content,
				Metadata:  c.metadata,
				Model:     ix.embedder.Model(),
				Embedding: vectors[i],
			}); err != nil {
				return written, fmt.Errorf("failed to store chunk %s: %w", c.id, err)
			}
			written++
		}
	}

	slog.InfoContext(ctx, "Indexed resources", "documents", len(docs), "chunks", written)
	return written, nil
}

// LoadDocuments reads the .md and .txt files at the top level of fsys. The
// first markdown heading, if any, becomes the "title" metadata entry.
func LoadDocuments(fsys fs.FS) ([]Document, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, err
	}

	var docs []Document
	for _, entry := range entries {
		name := entry.Name()
		ext := path.Ext(name)
		if entry.IsDir() || (ext != ".md" && ext != ".txt") {
			continue
		}
		data, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, err
		}
		content := string(data)
		doc := Document{Source: name, Content: content, Metadata: map[string]string{}}
		if title := firstHeading(content); title != "" {
			doc.Metadata["title"] = title
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func firstHeading(content string) string {
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "#") {
			return strings.TrimSpace(strings.TrimLeft(line, "#"))
		}
	}
	return ""
}

// SplitText breaks text into chunks of at most size runes on sentence
// boundaries. Each new chunk starts with the last overlap runes of the
// previous one. A single sentence longer than size becomes its own chunk.
func SplitText(text string, size, overlap int) []string {
	text = strings.Join(strings.Fields(text), " ")
	if text == "" {
		return nil
	}
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}

	var (
		chunks  []string
		current []rune
	)
	for _, sentence := range splitSentences(text) {
		s := []rune(sentence)
		if len(current) > 0 && len(current)+len(s) > size {
			chunks = append(chunks, strings.TrimSpace(string(current)))
			tail := current[max(0, len(current)-overlap):]
			current = append([]rune{}, tail...)
		}
		current = append(current, s...)
	}
	if c := strings.TrimSpace(string(current)); c != "" {
		chunks = append(chunks, c)
	}
	return chunks
}

// splitSentences cuts after sentence terminators, keeping them attached.
func splitSentences(text string) []string {
	var (
		out   []string
		start int
	)
	runes := []rune(text)
	for i, r := range runes {
		switch r {
		case '。', '！', '？', '.', '!', '?':
			out = append(out, string(runes[start:i+1]))
			start = i + 1
		}
	}
	if start < len(runes) {
		out = append(out, string(runes[start:]))
	}
	return out
}
