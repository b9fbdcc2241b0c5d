package auction

// Raw wire types for the auction-items endpoint. The API is an opaque,
// eventually-consistent collaborator: every field is optional in practice,
// and records that fail shape validation are skipped, not propagated.

type searchResponse struct {
	Items      []rawItem     `json:"items"`
	Pagination rawPagination `json:"pagination"`
}

type rawPagination struct {
	TotalEntries int `json:"total_entries"`
	TotalPages   int `json:"total_pages"`
	CurrentPage  int `json:"current_page"`
	PerPage      int `json:"per_page"`
}

type rawItem struct {
	ID            int64    `json:"id"`
	Title         string   `json:"title"`
	Description   string   `json:"description"`
	Condition     string   `json:"condition"`
	URL           string   `json:"url"`
	Currency      string   `json:"currency"`
	HammerPrice   *float64 `json:"hammer_price"`
	Estimate      *float64 `json:"estimate"`
	AuctionHouse  string   `json:"auction_house"`
	Location      string   `json:"location"`
	EndsAt        int64    `json:"ends_at"` // unix seconds
	State         string   `json:"state"`   // "published", "ended", ...
	Hammered      bool     `json:"hammered"`
	ReserveMet    bool     `json:"reserve_met"`
	ReserveAmount *float64 `json:"reserve_amount"`
	SellerID      string   `json:"seller_id"`
	CurrentBid    *float64 `json:"current_bid"`
	BidCount      int      `json:"bid_count"`
	Bids          []rawBid `json:"bids"`
}

type rawBid struct {
	Amount    float64 `json:"amount"`
	Timestamp int64   `json:"timestamp"`
}
