package relevance

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/auctionkit/market-engine/internal/domain"
	"github.com/auctionkit/market-engine/internal/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubCompleter struct {
	reply string
	err   error
	calls int
}

func (s *stubCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	return s.reply, nil
}

func scatteredSample(n int) []domain.SoldItem {
	items := make([]domain.SoldItem, 0, n)
	for i := 0; i < n; i++ {
		// Spread prices an order of magnitude to trip the trigger.
		items = append(items, priced(fmt.Sprintf("Objekt %d", i), float64(200*(i+1)), baseDate))
	}
	return items
}

func TestShouldFilter(t *testing.T) {
	tests := []struct {
		name  string
		items []domain.SoldItem
		want  bool
	}{
		{
			name:  "too few items",
			items: scatteredSample(5),
			want:  false,
		},
		{
			name:  "wide price spread",
			items: scatteredSample(10),
			want:  true,
		},
		{
			name: "many items regardless of spread",
			items: func() []domain.SoldItem {
				var out []domain.SoldItem
				for i := 0; i < 16; i++ {
					out = append(out, priced("Objekt", 500, baseDate))
				}
				return out
			}(),
			want: true,
		},
		{
			name: "large but tight sample",
			items: func() []domain.SoldItem {
				var out []domain.SoldItem
				for i := 0; i < 10; i++ {
					out = append(out, priced("Objekt", float64(500+10*i), baseDate))
				}
				return out
			}(),
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ShouldFilter(tt.items))
		})
	}
}

func TestAIFilter_KeepsOnlyRelevantIndices(t *testing.T) {
	items := scatteredSample(8)
	stub := &stubCompleter{
		reply: `Here is my assessment:
[{"index":0,"relevant":true},{"index":1,"relevant":true},{"index":2,"relevant":false},
 {"index":3,"relevant":true},{"index":4,"relevant":false},{"index":5,"relevant":true},
 {"index":6,"relevant":false},{"index":7,"relevant":false}]`,
	}

	f := NewAIFilter(stub, time.Second, observability.Nop())
	result := f.Filter(context.Background(), items, "CERTINA armbandsur")

	require.Len(t, result, 4)
	assert.Equal(t, items[0].Title, result[0].Title)
	assert.Equal(t, items[5].Title, result[3].Title)
}

func TestAIFilter_BackendErrorKeepsFullSample(t *testing.T) {
	items := scatteredSample(8)
	stub := &stubCompleter{err: fmt.Errorf("upstream timeout")}

	f := NewAIFilter(stub, time.Second, observability.Nop())
	assert.Equal(t, items, f.Filter(context.Background(), items, "armbandsur"))
}

func TestAIFilter_GarbageReplyKeepsFullSample(t *testing.T) {
	items := scatteredSample(8)
	stub := &stubCompleter{reply: "I cannot determine relevance for these items."}

	f := NewAIFilter(stub, time.Second, observability.Nop())
	assert.Equal(t, items, f.Filter(context.Background(), items, "armbandsur"))
}

func TestAIFilter_OverAggressiveReplyKeepsFullSample(t *testing.T) {
	items := scatteredSample(8)
	stub := &stubCompleter{reply: `[{"index":0,"relevant":true}]`}

	f := NewAIFilter(stub, time.Second, observability.Nop())
	assert.Equal(t, items, f.Filter(context.Background(), items, "armbandsur"))
}

func TestAIFilter_OutOfRangeIndicesIgnored(t *testing.T) {
	items := scatteredSample(8)
	stub := &stubCompleter{
		reply: `[{"index":0,"relevant":true},{"index":1,"relevant":true},{"index":2,"relevant":true},
 {"index":99,"relevant":true},{"index":-1,"relevant":true}]`,
	}

	f := NewAIFilter(stub, time.Second, observability.Nop())
	result := f.Filter(context.Background(), items, "armbandsur")
	assert.Len(t, result, 3)
}

func TestAIFilter_BelowTriggerSkipsModelCall(t *testing.T) {
	items := scatteredSample(5)
	stub := &stubCompleter{reply: `[]`}

	f := NewAIFilter(stub, time.Second, observability.Nop())
	assert.Equal(t, items, f.Filter(context.Background(), items, "armbandsur"))
	assert.Zero(t, stub.calls)
}

func TestAIFilter_NilCompleterPassesThrough(t *testing.T) {
	items := scatteredSample(20)
	f := NewAIFilter(nil, time.Second, observability.Nop())
	assert.Equal(t, items, f.Filter(context.Background(), items, "armbandsur"))
}
