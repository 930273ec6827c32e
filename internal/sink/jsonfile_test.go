package sink

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marketpulse/scrape-cli/internal/model"
)

func rec(id string) model.Record {
	return model.Record{"id": id, model.FieldHash: "h-" + id}
}

func TestJSONFile_WritesValidArrayAcrossBatches(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.json")
	s, err := NewJSONFile(path)
	require.NoError(t, err)

	ctx := context.Background()
	res, err := s.WriteBatch(ctx, []model.Record{rec("a"), rec("b")})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Inserted)

	res, err = s.WriteBatch(ctx, []model.Record{rec("c")})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Inserted)

	require.NoError(t, s.Close(ctx))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var decoded []map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Len(t, decoded, 3)
	assert.Equal(t, "a", decoded[0]["id"])
	assert.Equal(t, "b", decoded[1]["id"])
	assert.Equal(t, "c", decoded[2]["id"])
}

func TestJSONFile_InvalidUntilClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.json")
	s, err := NewJSONFile(path)
	require.NoError(t, err)

	_, err = s.WriteBatch(context.Background(), []model.Record{rec("a")})
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var decoded []map[string]any
	assert.Error(t, json.Unmarshal(data, &decoded), "array should be unterminated before Close")

	require.NoError(t, s.Close(context.Background()))
	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.NoError(t, json.Unmarshal(data, &decoded))
}

func TestJSONFile_FileGrowsPerBatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.json")
	s, err := NewJSONFile(path)
	require.NoError(t, err)

	ctx := context.Background()
	_, err = s.WriteBatch(ctx, []model.Record{rec("a")})
	require.NoError(t, err)
	info, err := os.Stat(path)
	require.NoError(t, err)
	afterFirst := info.Size()
	assert.Positive(t, afterFirst, "a written batch must reach the file before the next one")

	_, err = s.WriteBatch(ctx, []model.Record{rec("b")})
	require.NoError(t, err)
	info, err = os.Stat(path)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), afterFirst)

	require.NoError(t, s.Close(ctx))
}

func TestJSONFile_EmptyRunProducesEmptyArray(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.json")
	s, err := NewJSONFile(path)
	require.NoError(t, err)
	require.NoError(t, s.Close(context.Background()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var decoded []map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Empty(t, decoded)
}

func TestJSONFile_WriteAfterClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.json")
	s, err := NewJSONFile(path)
	require.NoError(t, err)
	require.NoError(t, s.Close(context.Background()))

	_, err = s.WriteBatch(context.Background(), []model.Record{rec("a")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "write after close")
}

func TestJSONFile_CreatesParentDirectories(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "deep", "out.json")
	s, err := NewJSONFile(path)
	require.NoError(t, err)
	require.NoError(t, s.Close(context.Background()))

	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestJSONFile_DoubleCloseIsNoop(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.json")
	s, err := NewJSONFile(path)
	require.NoError(t, err)
	require.NoError(t, s.Close(context.Background()))
	require.NoError(t, s.Close(context.Background()))
}
