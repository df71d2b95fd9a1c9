package strategy

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/avask/harvester/internal/harvest"
	"github.com/avask/harvester/internal/sink"
)

func newTickerStrategy(t *testing.T) (*Ticker, *sink.FileSink) {
	t.Helper()
	snk, err := sink.New(t.TempDir(), zap.NewNop())
	require.NoError(t, err)
	s, err := NewTicker(TickerConfig{
		BaseURL: "https://query1.finance.example.com/v7/finance/download/",
		Params:  map[string]string{"interval": "1d"},
	}, snk)
	require.NoError(t, err)
	return s, snk
}

func TestTickerResolve(t *testing.T) {
	t.Parallel()

	s, _ := newTickerStrategy(t)
	targets, err := s.Resolve(context.Background(), "AAA")
	require.NoError(t, err)
	require.Len(t, targets, 1)
	assert.Equal(t, "https://query1.finance.example.com/v7/finance/download/AAA", targets[0].URL)
	assert.Equal(t, harvest.KindText, targets[0].Kind)
	assert.Equal(t, "1d", targets[0].Query.Get("interval"))
}

func TestTickerSaveAppends(t *testing.T) {
	t.Parallel()

	s, _ := newTickerStrategy(t)
	path, err := s.Save("AAA", harvest.Target{}, []byte("row1\n"))
	require.NoError(t, err)
	_, err = s.Save("AAA", harvest.Target{}, []byte("row2\n"))
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "row1\nrow2\n", string(data))
}

func TestNewTickerRequiresBaseURL(t *testing.T) {
	t.Parallel()

	_, err := NewTicker(TickerConfig{}, nil)
	assert.Error(t, err)
}
