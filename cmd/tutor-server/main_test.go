package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/andrew/voice-tutor/pkg/config"
	"github.com/andrew/voice-tutor/pkg/models"
	"github.com/andrew/voice-tutor/pkg/vector"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type lengthEmbedder struct {
	calls int
}

func (e *lengthEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	e.calls++
	return []float32{float32(len(text)), float32(strings.Count(text, " ") + 1)}, nil
}

func writeCorpus(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "limits.md"), []byte("A limit describes the value a function approaches."), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.pdf"), []byte("ignored"), 0o644))
	return dir
}

func staleStore(t *testing.T) *vector.MemoryStore {
	t.Helper()
	store := vector.NewMemoryStore()
	require.NoError(t, store.Upsert(context.Background(), []models.EmbeddedChunk{
		{Chunk: models.Chunk{Text: "old", SourceOffset: models.SourceOffset{DocumentID: "old.md"}}, Embedding: []float32{1, 1}},
		{Chunk: models.Chunk{Text: "old", SourceOffset: models.SourceOffset{DocumentID: "old.md", Ordinal: 1}}, Embedding: []float32{1, 1}},
	}))
	return store
}

func TestIndexCorpus(t *testing.T) {
	t.Setenv("TUTOR_CORPUS_DIR", writeCorpus(t))
	cfg, err := config.Load(viper.New(), "")
	require.NoError(t, err)

	store := vector.NewMemoryStore()
	n, err := indexCorpus(context.Background(), cfg, &lengthEmbedder{}, store, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	count, err := store.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestIndexCorpusEmptyDirectory(t *testing.T) {
	t.Setenv("TUTOR_CORPUS_DIR", t.TempDir())
	cfg, err := config.Load(viper.New(), "")
	require.NoError(t, err)

	_, err = indexCorpus(context.Background(), cfg, &lengthEmbedder{}, vector.NewMemoryStore(), nil)
	assert.Error(t, err)
}

func TestPrepareIndexRebuildsByDefault(t *testing.T) {
	t.Setenv("TUTOR_CORPUS_DIR", writeCorpus(t))
	cfg, err := config.Load(viper.New(), "")
	require.NoError(t, err)

	store := staleStore(t)
	n, err := prepareIndex(context.Background(), cfg, &lengthEmbedder{}, store, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	count, err := store.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestPrepareIndexReusesPopulatedStore(t *testing.T) {
	t.Setenv("TUTOR_CORPUS_DIR", writeCorpus(t))
	t.Setenv("TUTOR_CORPUS_REUSE_INDEX", "true")
	cfg, err := config.Load(viper.New(), "")
	require.NoError(t, err)

	emb := &lengthEmbedder{}
	n, err := prepareIndex(context.Background(), cfg, emb, staleStore(t), nil)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Zero(t, emb.calls)
}

func TestPrepareIndexReuseFallsBackWhenEmpty(t *testing.T) {
	t.Setenv("TUTOR_CORPUS_DIR", writeCorpus(t))
	t.Setenv("TUTOR_CORPUS_REUSE_INDEX", "true")
	cfg, err := config.Load(viper.New(), "")
	require.NoError(t, err)

	emb := &lengthEmbedder{}
	n, err := prepareIndex(context.Background(), cfg, emb, vector.NewMemoryStore(), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, emb.calls)
}

func TestLoadEnvFile(t *testing.T) {
	require.NoError(t, loadEnvFile(filepath.Join(t.TempDir(), "missing.env")))

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("TUTOR_TEST_ENV_VALUE=from-dotenv\n"), 0o644))
	t.Setenv("TUTOR_TEST_ENV_VALUE", "")
	os.Unsetenv("TUTOR_TEST_ENV_VALUE")

	require.NoError(t, loadEnvFile(path))
	assert.Equal(t, "from-dotenv", os.Getenv("TUTOR_TEST_ENV_VALUE"))
}
