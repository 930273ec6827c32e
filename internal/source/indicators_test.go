package source

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marketpulse/scrape-cli/internal/config"
	"github.com/marketpulse/scrape-cli/internal/model"
)

const indicatorsHTML = `<html><body>
<div id="overview" role="tabpanel">
  <table class="table table-hover">
    <thead><tr><th></th><th>Last</th><th>Previous</th><th>Highest</th><th>Lowest</th><th></th><th></th></tr></thead>
    <tbody>
      <tr><td><a>GDP Growth Rate</a></td><td>7.8</td><td>6.2</td><td>22.6</td><td>-23.1</td><td>percent</td><td>Jun 2024</td></tr>
      <tr><td><a>Unemployment Rate</a></td><td>8.1</td><td>7.6</td><td>23.5</td><td>6.4</td><td>percent</td><td>Oct 2024</td></tr>
    </tbody>
  </table>
</div>
<div id="gdp" role="tabpanel">
  <table class="table table-hover">
    <thead><tr><th></th><th>Last</th><th>Previous</th><th>Highest</th><th>Lowest</th><th></th><th></th></tr></thead>
    <tbody>
      <tr><td><a>GDP</a></td><td>3550</td><td>3350</td><td>3550</td><td>37</td><td>USD Billion</td><td>Dec 2023</td></tr>
    </tbody>
  </table>
</div>
</body></html>`

func newIndicatorsSource(t *testing.T, tabs []string) (*IndicatorsSource, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/india/indicators" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		fmt.Fprint(w, indicatorsHTML)
	}))
	t.Cleanup(srv.Close)

	s := NewIndicators(newTestClient(t), config.IndicatorsConfig{
		BaseURL: srv.URL,
		Country: "India",
		Tabs:    tabs,
	})
	s.now = fixedTime
	return s, srv
}

func TestIndicatorsFetchPage_ExtractsRows(t *testing.T) {
	s, srv := newIndicatorsSource(t, []string{"overview", "gdp"})

	batch, hasMore, err := s.FetchPage(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, hasMore)
	require.Len(t, batch.Records, 2)

	first := batch.Records[0]
	assert.Equal(t, "GDP Growth Rate", first["indicator"])
	assert.Equal(t, "7.8", first["last"])
	assert.Equal(t, "6.2", first["previous"])
	assert.Equal(t, "22.6", first["highest"])
	assert.Equal(t, "-23.1", first["lowest"])
	assert.Equal(t, "percent", first["unit"])
	assert.Equal(t, "Jun 2024", first["date"])
	assert.Equal(t, "india", first["country"])
	assert.Equal(t, "overview", first["tab_name"])
	assert.Equal(t, srv.URL+"/india/indicators", first[model.FieldURL])
	assert.Equal(t, model.Hash("india", "overview", "GDP Growth Rate"), first[model.FieldHash])
}

func TestIndicatorsFetchPage_LastTab_NoMore(t *testing.T) {
	s, _ := newIndicatorsSource(t, []string{"overview", "gdp"})

	batch, hasMore, err := s.FetchPage(context.Background(), 2)
	require.NoError(t, err)
	assert.False(t, hasMore)
	require.Len(t, batch.Records, 1)
	assert.Equal(t, "gdp", batch.Records[0]["tab_name"])
}

func TestIndicatorsFetchPage_MissingTab_EmptyBatch(t *testing.T) {
	s, _ := newIndicatorsSource(t, []string{"housing"})

	batch, hasMore, err := s.FetchPage(context.Background(), 1)
	require.NoError(t, err)
	assert.False(t, hasMore)
	assert.Empty(t, batch.Records)
}

func TestIndicatorsFetchPage_OutOfRange(t *testing.T) {
	s, _ := newIndicatorsSource(t, []string{"overview"})

	batch, hasMore, err := s.FetchPage(context.Background(), 5)
	require.NoError(t, err)
	assert.False(t, hasMore)
	assert.Empty(t, batch.Records)
}

func TestIndicatorsPages(t *testing.T) {
	s, _ := newIndicatorsSource(t, []string{"overview", "gdp", "labour"})
	assert.Equal(t, 3, s.Pages())
}
