package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terangapay/ledger-engine/internal/app/domain/journal"
	"github.com/terangapay/ledger-engine/pkg/logger"
)

func TestLogDispatcherEmitsStructuredEvent(t *testing.T) {
	var buf bytes.Buffer
	d := NewLogDispatcher(logger.New("notify", &buf, zerolog.InfoLevel))

	d.Dispatch(context.Background(), EventTransferCompleted, "alice", journal.Entry{
		ID:     "entry-1",
		Amount: decimal.NewFromInt(300),
	})

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "transfer.completed", line["event"])
	assert.Equal(t, "alice", line["actor"])
	assert.Equal(t, "entry-1", line["entry"])
	assert.Equal(t, "300", line["amount"])
	assert.Equal(t, "notify", line["component"])
}

func TestNoopDiscards(t *testing.T) {
	// must not panic on zero values
	Noop{}.Dispatch(context.Background(), EventRoundBlocked, "", journal.Entry{})
}
