package retrieval

// CollectionCount is the document count of one collection.
type CollectionCount struct {
	Name  string
	Count int
}

// Stats summarizes the indexed corpus.
type Stats struct {
	Collections      []CollectionCount
	Total            int
	LexicalDocuments int
}
