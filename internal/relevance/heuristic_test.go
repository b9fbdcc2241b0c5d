package relevance

import (
	"strings"
	"testing"
	"time"

	"github.com/auctionkit/market-engine/internal/domain"
	"github.com/auctionkit/market-engine/internal/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func priced(title string, price float64, endDate time.Time) domain.SoldItem {
	return domain.SoldItem{Title: title, FinalPrice: &price, Currency: domain.HomeCurrency, EndDate: endDate}
}

var baseDate = time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

func TestValidate_DropsPriceBandOutliers(t *testing.T) {
	items := []domain.SoldItem{
		priced("Brosch, silver", 400, baseDate),
		priced("Brosch, silver, emalj", 550, baseDate),
		priced("Brosch, förgylld", 700, baseDate),
		priced("Brosch, 18k guld med diamanter", 95000, baseDate),
	}

	v := NewValidator(observability.Nop())
	result := v.Validate(items, `"brosch"`)

	require.Len(t, result, 3)
	for _, item := range result {
		assert.Less(t, *item.FinalPrice, 10000.0)
	}
}

func TestValidate_RevertsWhenStepWouldStarveSample(t *testing.T) {
	// Two clusters an order of magnitude apart: removing either would leave
	// fewer than three items, so the band filter must keep everything.
	items := []domain.SoldItem{
		priced("Ring", 100, baseDate),
		priced("Ring", 120, baseDate),
		priced("Ring", 30000, baseDate),
		priced("Ring", 35000, baseDate),
	}

	v := NewValidator(observability.Nop())
	assert.Len(t, v.Validate(items, `"ring"`), 4)
}

func TestValidate_PersonNameRequiresAllTokensInTitle(t *testing.T) {
	items := []domain.SoldItem{
		priced("LISA LARSON, figurin, Gustavsberg", 800, baseDate),
		priced("Lisa Larson, skulptur, stengods", 950, baseDate),
		priced("LISA LARSON, vas", 700, baseDate),
		priced("Larson, oljemålning", 1200, baseDate),
		priced("Figurin, keramik, 1970-tal", 300, baseDate),
	}

	v := NewValidator(observability.Nop())
	result := v.Validate(items, `"Lisa" "Larson"`)

	require.Len(t, result, 3)
	for _, item := range result {
		assert.Contains(t, strings.ToLower(item.Title), "lisa")
	}
}

func TestValidate_GenericQueryMatchesDescriptionToo(t *testing.T) {
	items := []domain.SoldItem{
		priced("Armbandsur, CERTINA DS", 1500, baseDate),
		priced("CERTINA, fickur", 1100, baseDate),
		priced("Herrur, automatic", 1200, baseDate),
		{Title: "Ur", Description: "Certina armbandsur i stål", FinalPrice: floatPtr(900), EndDate: baseDate},
		priced("Matsilver, 12 delar", 2000, baseDate),
	}

	v := NewValidator(observability.Nop())
	result := v.Validate(items, `"certina"`)

	require.Len(t, result, 3)
	for _, item := range result {
		haystack := strings.ToLower(item.Title + " " + item.Description)
		assert.Contains(t, haystack, "certina")
	}
}

func floatPtr(v float64) *float64 { return &v }

func TestValidate_WideTimeSpanPrefersRecent(t *testing.T) {
	items := []domain.SoldItem{
		priced("Vas, glas", 500, baseDate),
		priced("Vas, glas", 520, baseDate.AddDate(-1, 0, 0)),
		priced("Vas, glas", 480, baseDate.AddDate(-2, 0, 0)),
		priced("Vas, glas", 200, baseDate.AddDate(-12, 0, 0)),
		priced("Vas, glas", 180, baseDate.AddDate(-14, 0, 0)),
	}

	v := NewValidator(observability.Nop())
	result := v.Validate(items, `"vas" "glas"`)

	require.Len(t, result, 3)
	cutoff := baseDate.AddDate(-recentYears, 0, 0)
	for _, item := range result {
		assert.False(t, item.EndDate.Before(cutoff))
	}
}

func TestValidate_SmallSamplePassesUntouched(t *testing.T) {
	items := []domain.SoldItem{
		priced("Tavla", 100, baseDate),
		priced("Helt annat objekt", 900000, baseDate),
	}

	v := NewValidator(observability.Nop())
	assert.Equal(t, items, v.Validate(items, `"tavla"`))
}

func TestLooksLikePersonName(t *testing.T) {
	tests := []struct {
		query string
		want  bool
	}{
		{`"Lisa" "Larson"`, true},
		{`"Carl" "Harry" "Stålhane"`, true},
		{`"Anna-Lisa" "Thomson"`, true},
		{`"armbandsur"`, false},
		{`"lisa" "larson"`, false},
		{`"CERTINA" "armbandsur"`, false},
		{`"Royal" "Copenhagen" "fajans" "fat"`, false},
		{`"18k" "guld"`, false},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			assert.Equal(t, tt.want, LooksLikePersonName(tt.query))
		})
	}
}
