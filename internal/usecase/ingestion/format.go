package ingestion

import (
	"fmt"
	"strings"

	"github.com/kailas-cloud/medrag/internal/domain/document"
	"github.com/kailas-cloud/medrag/internal/transport/pubmed"
)

// Placeholders for missing record fields.
const (
	NoTitle        = "No Title"
	NoAbstract     = "No abstract available."
	UnknownJournal = "Unknown Journal"
	UnknownAuthors = "Unknown authors"
	UnknownDate    = "Unknown"
	SourcePubMed   = "pubmed"

	maxAuthors = 10
)

// FormatArticle turns the i-th fetched record into a document for collection.
func FormatArticle(a *pubmed.Article, i int, collection string) (document.Document, error) {
	title := strings.TrimSpace(a.Title)
	if title == "" {
		title = NoTitle
	}
	text := fmt.Sprintf("Title: %s\n\nAbstract: %s", title, FlattenAbstract(a.Abstract))

	id := "pubmed_" + a.PMID
	if a.PMID == "" {
		id = document.ContentID(fmt.Sprintf("item_%d_", i), text)
	}

	meta := map[string]any{
		"title":            title,
		"journal":          orDefault(a.Journal, UnknownJournal),
		"authors":          FormatAuthors(a.Authors),
		"publication_date": orDefault(a.PublicationDate, UnknownDate),
		"pmid":             a.PMID,
		"source":           SourcePubMed,
	}
	return document.New(id, text, meta, collection)
}

// FlattenAbstract joins labelled sections as "Label: text", separated by spaces.
func FlattenAbstract(sections []pubmed.AbstractSection) string {
	parts := make([]string, 0, len(sections))
	for _, s := range sections {
		t := strings.TrimSpace(s.Text)
		if t == "" {
			continue
		}
		if s.Label != "" {
			t = s.Label + ": " + t
		}
		parts = append(parts, t)
	}
	if len(parts) == 0 {
		return NoAbstract
	}
	return strings.Join(parts, " ")
}

// FormatAuthors joins the first ten author names.
func FormatAuthors(authors []string) string {
	if len(authors) == 0 {
		return UnknownAuthors
	}
	if len(authors) > maxAuthors {
		authors = authors[:maxAuthors]
	}
	return strings.Join(authors, ", ")
}

func orDefault(s, def string) string {
	if s = strings.TrimSpace(s); s == "" {
		return def
	}
	return s
}
