package auction

import (
	"strings"
	"time"

	"github.com/auctionkit/market-engine/internal/domain"
)

// acceptCurrency reports whether a record can enter the single-currency
// market sample. Mixing currencies would silently corrupt every price
// statistic, so foreign records are dropped outright rather than converted.
// An empty currency field is treated as the home currency; the API omits it
// on domestic records.
func acceptCurrency(currency string) bool {
	if currency == "" {
		return true
	}
	return strings.EqualFold(currency, domain.HomeCurrency)
}

// normalizeSoldItem converts a raw ended-auction record into a SoldItem.
// Returns false when the record is not a usable historical data point:
// wrong currency, no price signal at all, or an end time in the future.
func normalizeSoldItem(raw rawItem, now time.Time) (domain.SoldItem, bool) {
	if !acceptCurrency(raw.Currency) {
		return domain.SoldItem{}, false
	}

	endDate := time.Unix(raw.EndsAt, 0).UTC()
	hasHammer := raw.HammerPrice != nil && *raw.HammerPrice > 0
	hasEstimate := raw.Estimate != nil && *raw.Estimate > 0

	// Ended records need a positive hammer price, or an estimate plus a
	// past end time. Anything else carries no price information.
	if !hasHammer && !(hasEstimate && endDate.Before(now)) {
		return domain.SoldItem{}, false
	}

	item := domain.SoldItem{
		Title:                strings.TrimSpace(raw.Title),
		Currency:             domain.HomeCurrency,
		Estimate:             raw.Estimate,
		House:                raw.AuctionHouse,
		Location:             raw.Location,
		EndDate:              endDate,
		ReserveMet:           raw.ReserveMet,
		ReserveAmount:        raw.ReserveAmount,
		Description:          strings.TrimSpace(raw.Description),
		Condition:            raw.Condition,
		URL:                  raw.URL,
		IsEstimateBasedPrice: !hasHammer,
	}
	if hasHammer {
		item.FinalPrice = raw.HammerPrice
	}
	if last := lastBidTime(raw.Bids); !last.IsZero() {
		item.BidDate = last
	} else {
		item.BidDate = endDate
	}

	if item.Title == "" {
		return domain.SoldItem{}, false
	}
	return item, true
}

// normalizeLiveItem converts a raw record into a LiveItem. Live search keeps
// only unhammered lots in a published state with a future end time.
func normalizeLiveItem(raw rawItem, now time.Time) (domain.LiveItem, bool) {
	if !acceptCurrency(raw.Currency) {
		return domain.LiveItem{}, false
	}
	if raw.Hammered || !strings.EqualFold(raw.State, "published") {
		return domain.LiveItem{}, false
	}

	endDate := time.Unix(raw.EndsAt, 0).UTC()
	if !endDate.After(now) {
		return domain.LiveItem{}, false
	}

	item := domain.LiveItem{
		Title:      strings.TrimSpace(raw.Title),
		CurrentBid: raw.CurrentBid,
		Currency:   domain.HomeCurrency,
		Estimate:   raw.Estimate,
		House:      raw.AuctionHouse,
		Location:   raw.Location,
		EndDate:    endDate,
		BidCount:   raw.BidCount,
		URL:        raw.URL,
	}
	if item.Title == "" {
		return domain.LiveItem{}, false
	}
	return item, true
}

// isQuickUsable is the cheap pagination-quality filter: a record counts
// toward the usable-sample threshold only if it is sold with a confirmed
// positive hammer price in the home currency.
func isQuickUsable(raw rawItem) bool {
	return acceptCurrency(raw.Currency) &&
		raw.HammerPrice != nil && *raw.HammerPrice > 0
}

func lastBidTime(bids []rawBid) time.Time {
	var last int64
	for _, b := range bids {
		if b.Timestamp > last {
			last = b.Timestamp
		}
	}
	if last == 0 {
		return time.Time{}
	}
	return time.Unix(last, 0).UTC()
}
