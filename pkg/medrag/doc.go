// Package medrag embeds the medrag retrieval engine in a Go program.
//
// The client wires the same engine as the HTTP server: vector collections
// in Redis, Valkey or an embedded badger store, a BM25 index over both, an
// OpenAI-compatible embedding provider and optional PubMed enrichment.
//
//	client, _ := medrag.New(ctx,
//	    medrag.WithBadger("./data"),
//	    medrag.WithEmbedding("https://api.openai.com/v1/", key, "text-embedding-3-small", 1536),
//	    medrag.WithPubMed("me@example.org", ""),
//	)
//	defer client.Close()
//	ids, _ := client.Add(ctx, medrag.Document{Content: "Metformin lowers glucose"})
//	results, _ := client.Retrieve(ctx, "diabetes treatment", 5)
package medrag
