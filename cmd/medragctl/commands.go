package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/kailas-cloud/medrag/internal/app"
	"github.com/kailas-cloud/medrag/internal/config"
	logpkg "github.com/kailas-cloud/medrag/internal/logger"
	documentuc "github.com/kailas-cloud/medrag/internal/usecase/document"
)

// withEngine loads config, builds the engine and runs fn. Ctrl-C cancels fn's context.
func withEngine(c *cli.Context, fn func(ctx context.Context, engine *app.App) error) error {
	var (
		cfg config.Config
		err error
	)
	if path := c.String("config"); path != "" {
		cfg, err = config.LoadFile(path)
	} else {
		cfg, err = config.Load(c.String("env"))
	}
	if err != nil {
		return err
	}

	// The CLI always logs in console format.
	logger, err := logpkg.NewLogger("local", c.String("log-level"))
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt)
	defer stop()

	engine, err := app.Build(ctx, &cfg, logger)
	if err != nil {
		return err
	}
	defer engine.Close()

	return fn(ctx, engine)
}

func retrieveCommand(c *cli.Context) error {
	q := strings.Join(c.Args().Slice(), " ")
	if strings.TrimSpace(q) == "" {
		return fmt.Errorf("query is required")
	}

	return withEngine(c, func(ctx context.Context, engine *app.App) error {
		topK := c.Int("top-k")
		if topK == 0 {
			topK = engine.Retrieval.DefaultTopK()
		}
		results, err := engine.Retrieval.Retrieve(ctx, q, topK)
		if err != nil {
			return err
		}

		if c.Bool("json") {
			out := make([]map[string]any, len(results))
			for i := range results {
				r := &results[i]
				out[i] = map[string]any{
					"id":              r.ID(),
					"document":        r.Document(),
					"metadata":        r.Metadata(),
					"source":          r.Source().Name,
					"raw_score":       r.RawScore(),
					"relevance_score": r.RelevanceScore(),
				}
			}
			return printJSON(c, map[string]any{"results": out, "total": len(out)})
		}

		w := c.App.Writer
		if len(results) == 0 {
			fmt.Fprintln(w, "No results.")
			return nil
		}
		for i := range results {
			r := &results[i]
			fmt.Fprintf(w, "%d. [%s] %s  relevance=%.4f raw=%.4f\n",
				i+1, r.Source().Name, r.ID(), r.RelevanceScore(), r.RawScore())
			doc := r.Doc()
			fmt.Fprintf(w, "   %s\n", doc.Title())
		}
		return nil
	})
}

func statsCommand(c *cli.Context) error {
	return withEngine(c, func(ctx context.Context, engine *app.App) error {
		st := engine.Retrieval.Stats(ctx)

		if c.Bool("json") {
			cols := make(map[string]int, len(st.Collections))
			for _, col := range st.Collections {
				cols[col.Name] = col.Count
			}
			return printJSON(c, map[string]any{
				"collections":       cols,
				"total":             st.Total,
				"lexical_documents": st.LexicalDocuments,
			})
		}

		w := c.App.Writer
		for _, col := range st.Collections {
			fmt.Fprintf(w, "%-24s %d\n", col.Name, col.Count)
		}
		fmt.Fprintf(w, "%-24s %d\n", "total", st.Total)
		fmt.Fprintf(w, "%-24s %d\n", "lexical_documents", st.LexicalDocuments)
		return nil
	})
}

func fetchCommand(c *cli.Context) error {
	topic := strings.Join(c.Args().Slice(), " ")
	if strings.TrimSpace(topic) == "" {
		return fmt.Errorf("topic is required")
	}

	return withEngine(c, func(ctx context.Context, engine *app.App) error {
		ok, err := engine.Retrieval.Enrich(ctx, topic, c.Int("max"))
		if err != nil {
			return err
		}
		if c.Bool("json") {
			return printJSON(c, map[string]bool{"success": ok})
		}
		if !ok {
			return fmt.Errorf("nothing was fetched for %q", topic)
		}
		fmt.Fprintf(c.App.Writer, "Fetched literature for %q\n", topic)
		return nil
	})
}

func addCommand(c *cli.Context) error {
	meta, err := parseMeta(c.StringSlice("meta"))
	if err != nil {
		return err
	}

	var items []documentuc.Input
	for _, path := range c.StringSlice("file") {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		items = append(items, documentuc.Input{Content: string(data), Metadata: meta})
	}
	for _, content := range c.Args().Slice() {
		items = append(items, documentuc.Input{Content: content, Metadata: meta})
	}
	if len(items) == 0 {
		return fmt.Errorf("no documents: pass content arguments or --file")
	}

	return withEngine(c, func(ctx context.Context, engine *app.App) error {
		ids, err := engine.Documents.Add(ctx, items)
		if err != nil {
			return err
		}
		if c.Bool("json") {
			return printJSON(c, map[string]any{"added": len(ids), "ids": ids})
		}
		for _, id := range ids {
			fmt.Fprintln(c.App.Writer, id)
		}
		return nil
	})
}

// parseMeta turns key=value pairs into string metadata.
func parseMeta(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	meta := make(map[string]any, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || strings.TrimSpace(k) == "" {
			return nil, fmt.Errorf("invalid --meta %q: want key=value", p)
		}
		meta[strings.TrimSpace(k)] = v
	}
	return meta, nil
}

func printJSON(c *cli.Context, v any) error {
	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
