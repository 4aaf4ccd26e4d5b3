package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeEmbeddings(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Input []string `json:"input"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		data := make([]map[string]any, len(req.Input))
		for i, text := range req.Input {
			data[i] = map[string]any{
				"object":    "embedding",
				"index":     i,
				"embedding": []float32{float32(len(text)%5 + 1), 1, 0, 0},
			}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"object": "list", "data": data})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func writeConfig(t *testing.T, embURL string) string {
	t.Helper()
	dir := t.TempDir()
	cfg := fmt.Sprintf(`http:
  port: 8080
database:
  driver: badger
  path: %s
embedding:
  api_key: test
  base_url: %s
  model: test-model
  dimensions: 4
ingestion:
  enabled: false
`, filepath.Join(dir, "data"), embURL)
	path := filepath.Join(dir, "medrag.yaml")
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o600))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.ErrWriter = &out
	err := app.Run(append([]string{"medragctl"}, args...))
	return out.String(), err
}

func TestCommands_RequireArguments(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"retrieve without query", []string{"retrieve"}, "query is required"},
		{"fetch without topic", []string{"fetch", "  "}, "topic is required"},
		{"add without documents", []string{"add"}, "no documents"},
		{"add with bad metadata", []string{"add", "--meta", "novalue", "text"}, "want key=value"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, append([]string{"--config", "/nonexistent.yaml"}, tt.args...)...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestCommands_MissingConfig(t *testing.T) {
	_, err := run(t, "--config", filepath.Join(t.TempDir(), "none.yaml"), "stats")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config")
}

func TestCommands_AddRetrieveStats(t *testing.T) {
	cfgPath := writeConfig(t, fakeEmbeddings(t).URL)

	out, err := run(t, "--config", cfgPath, "--json", "add", "--meta", "title=Diabetes",
		"Diabetes causes increased thirst and fatigue")
	require.NoError(t, err)
	var added struct {
		Added int      `json:"added"`
		IDs   []string `json:"ids"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &added), out)
	require.Equal(t, 1, added.Added)
	assert.True(t, strings.HasPrefix(added.IDs[0], "custom_"))

	out, err = run(t, "--config", cfgPath, "retrieve", "-k", "3", "diabetes", "symptoms")
	require.NoError(t, err)
	assert.Contains(t, out, added.IDs[0])
	assert.Contains(t, out, "Diabetes")

	out, err = run(t, "--config", cfgPath, "--json", "stats")
	require.NoError(t, err)
	var st struct {
		Collections      map[string]int `json:"collections"`
		Total            int            `json:"total"`
		LexicalDocuments int            `json:"lexical_documents"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &st), out)
	assert.Equal(t, 1, st.Total)
	assert.Equal(t, 1, st.Collections["medical_documents"])
	assert.Equal(t, 1, st.LexicalDocuments)
}

func TestCommands_FetchDisabled(t *testing.T) {
	cfgPath := writeConfig(t, fakeEmbeddings(t).URL)

	_, err := run(t, "--config", cfgPath, "fetch", "asthma")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nothing was fetched")
}

func TestParseMeta(t *testing.T) {
	meta, err := parseMeta([]string{"title=Trial", "year=2024", "note=a=b"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"title": "Trial", "year": "2024", "note": "a=b"}, meta)

	meta, err = parseMeta(nil)
	require.NoError(t, err)
	assert.Nil(t, meta)
}
