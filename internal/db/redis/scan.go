package redis

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/medrag/internal/db"
)

const scanBatch = 500

// Scan returns every key matching pattern.
func (s *Store) Scan(ctx context.Context, pattern string) ([]string, error) {
	var (
		keys   []string
		cursor uint64
	)
	for {
		cmd := s.b().Scan().Cursor(cursor).Match(pattern).Count(scanBatch).Build()
		entry, err := s.do(ctx, cmd).AsScanEntry()
		if err != nil {
			return nil, &db.Error{Op: db.OpScan, Err: err}
		}
		keys = append(keys, entry.Elements...)
		cursor = entry.Cursor
		if cursor == 0 {
			return keys, nil
		}
	}
}

func (s *Store) scanCount(ctx context.Context, index string) (int, error) {
	keys, err := s.Scan(ctx, indexToKeyPrefix(index)+"*")
	if err != nil {
		return 0, fmt.Errorf("scan for count: %w", err)
	}
	return len(keys), nil
}

func (s *Store) scanList(
	ctx context.Context, index string, offset, limit int, fields []string,
) (*db.SearchResult, error) {
	keys, err := s.Scan(ctx, indexToKeyPrefix(index)+"*")
	if err != nil {
		return nil, fmt.Errorf("scan for list: %w", err)
	}
	sort.Strings(keys)

	total := len(keys)
	if offset >= total {
		return &db.SearchResult{Total: total}, nil
	}
	page := keys[offset:min(offset+limit, total)]

	cmds := make([]rueidis.Completed, len(page))
	for i, key := range page {
		cmds[i] = s.b().Hgetall().Key(key).Build()
	}
	results := s.client.DoMulti(ctx, cmds...)

	entries := make([]db.SearchEntry, 0, len(page))
	for i, res := range results {
		m, err := res.AsStrMap()
		if err != nil {
			return nil, &db.Error{Op: db.OpHGetAll, Err: fmt.Errorf("key %s: %w", page[i], err)}
		}
		if len(m) == 0 {
			continue // deleted between SCAN and HGETALL
		}
		entries = append(entries, db.SearchEntry{Key: page[i], Fields: pickFields(m, fields)})
	}
	return &db.SearchResult{Total: total, Entries: entries}, nil
}

func pickFields(m map[string]string, fields []string) map[string]string {
	if len(fields) == 0 {
		return m
	}
	out := make(map[string]string, len(fields))
	for _, f := range fields {
		if v, ok := m[f]; ok {
			out[f] = v
		}
	}
	return out
}

// indexToKeyPrefix maps an index name to its document key prefix.
// "medrag:notes:idx" -> "medrag:notes:doc:"
func indexToKeyPrefix(index string) string {
	if base, ok := strings.CutSuffix(index, ":idx"); ok {
		return base + ":doc:"
	}
	return index + ":"
}
