package sink

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/marketpulse/scrape-cli/internal/model"
)

func TestXLSXFile_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.xlsx")
	s, err := NewXLSXFile(path)
	require.NoError(t, err)

	ctx := context.Background()
	res, err := s.WriteBatch(ctx, []model.Record{
		{model.FieldHash: "h1", "title": "first", "price": 1250.5},
		{model.FieldHash: "h2", "title": "second"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Inserted)
	require.NoError(t, s.Close(ctx))

	f, err := xlsx.OpenFile(path)
	require.NoError(t, err)
	require.Len(t, f.Sheets, 1)

	sheet := f.Sheets[0]
	assert.Equal(t, "Records", sheet.Name)
	require.Len(t, sheet.Rows, 3)

	header := sheet.Rows[0]
	assert.Equal(t, "hash", header.Cells[0].String())
	assert.Equal(t, "price", header.Cells[1].String())
	assert.Equal(t, "title", header.Cells[2].String())

	assert.Equal(t, "h1", sheet.Rows[1].Cells[0].String())
	price, err := sheet.Rows[1].Cells[1].Float()
	require.NoError(t, err)
	assert.InDelta(t, 1250.5, price, 0.001)
	assert.Equal(t, "second", sheet.Rows[2].Cells[2].String())
}

func TestXLSXFile_WriteAfterClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.xlsx")
	s, err := NewXLSXFile(path)
	require.NoError(t, err)
	require.NoError(t, s.Close(context.Background()))

	_, err = s.WriteBatch(context.Background(), []model.Record{{model.FieldHash: "h"}})
	require.Error(t, err)
}
