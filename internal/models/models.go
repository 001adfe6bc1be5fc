// Package models defines the data structures used throughout the application.
// It includes the Coin, Item, and User entities, the JSON payloads of the
// inventory API, and the patch structures applied by partial updates.
package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the wire format for purchase and sale dates.
const DateLayout = "2006-01-02"

// Prices and weights travel as JSON numbers, not strings.
func init() {
	decimal.MarshalJSONWithoutQuotes = true
}

// Metals enumerates the precious metals a Coin may be made of.
var Metals = []string{"gold", "silver", "platinum", "palladium"}

// ValidMetal reports whether the given metal belongs to the supported set.
func ValidMetal(metal string) bool {
	for _, m := range Metals {
		if m == metal {
			return true
		}
	}
	return false
}

// Coin represents a catalogued type of bullion coin or bar, not an
// individual owned unit. Reference URLs default to the empty string;
// current dealer prices are unset until recorded.
type Coin struct {
	ID           int32
	Name         string
	Weight       decimal.Decimal
	ActualWeight decimal.Decimal
	Metal        string
	Country      string

	NGCURL       string
	PCGSURL      string
	JMURL        string
	ApmexURL     string
	ShinybarsURL string
	ProvidentURL string

	CurrentNGC       decimal.NullDecimal
	CurrentPCGS      decimal.NullDecimal
	CurrentJM        decimal.NullDecimal
	CurrentApmex     decimal.NullDecimal
	CurrentShinybars decimal.NullDecimal
	CurrentProvident decimal.NullDecimal
}

// CoinPatch enumerates the Coin attributes a partial update may overwrite.
// A nil field leaves the stored attribute untouched; Name is deliberately
// absent because it only locates the target and is never altered.
type CoinPatch struct {
	Weight       *decimal.Decimal
	ActualWeight *decimal.Decimal
	Metal        *string
	Country      *string

	NGCURL       *string
	PCGSURL      *string
	JMURL        *string
	ApmexURL     *string
	ShinybarsURL *string
	ProvidentURL *string

	CurrentNGC       *decimal.Decimal
	CurrentPCGS      *decimal.Decimal
	CurrentJM        *decimal.Decimal
	CurrentApmex     *decimal.Decimal
	CurrentShinybars *decimal.Decimal
	CurrentProvident *decimal.Decimal
}

// Apply merges the present fields of the patch onto the coin.
func (p *CoinPatch) Apply(coin *Coin) {
	if p.Weight != nil {
		coin.Weight = *p.Weight
	}
	if p.ActualWeight != nil {
		coin.ActualWeight = *p.ActualWeight
	}
	if p.Metal != nil {
		coin.Metal = *p.Metal
	}
	if p.Country != nil {
		coin.Country = *p.Country
	}
	if p.NGCURL != nil {
		coin.NGCURL = *p.NGCURL
	}
	if p.PCGSURL != nil {
		coin.PCGSURL = *p.PCGSURL
	}
	if p.JMURL != nil {
		coin.JMURL = *p.JMURL
	}
	if p.ApmexURL != nil {
		coin.ApmexURL = *p.ApmexURL
	}
	if p.ShinybarsURL != nil {
		coin.ShinybarsURL = *p.ShinybarsURL
	}
	if p.ProvidentURL != nil {
		coin.ProvidentURL = *p.ProvidentURL
	}
	if p.CurrentNGC != nil {
		coin.CurrentNGC = decimal.NullDecimal{Decimal: *p.CurrentNGC, Valid: true}
	}
	if p.CurrentPCGS != nil {
		coin.CurrentPCGS = decimal.NullDecimal{Decimal: *p.CurrentPCGS, Valid: true}
	}
	if p.CurrentJM != nil {
		coin.CurrentJM = decimal.NullDecimal{Decimal: *p.CurrentJM, Valid: true}
	}
	if p.CurrentApmex != nil {
		coin.CurrentApmex = decimal.NullDecimal{Decimal: *p.CurrentApmex, Valid: true}
	}
	if p.CurrentShinybars != nil {
		coin.CurrentShinybars = decimal.NullDecimal{Decimal: *p.CurrentShinybars, Valid: true}
	}
	if p.CurrentProvident != nil {
		coin.CurrentProvident = decimal.NullDecimal{Decimal: *p.CurrentProvident, Valid: true}
	}
}

// Item represents a single purchased (and possibly sold) physical unit of a
// Coin type. The sale and shipping attributes stay nil until recorded.
type Item struct {
	ID       int32
	CoinID   int32
	CoinName string
	Year     *int32

	PurchasePrice decimal.Decimal
	PurchaseDate  time.Time
	PurchasedFrom string
	PurchaseSpot  decimal.Decimal

	Sold      bool
	SoldPrice *decimal.Decimal
	SoldDate  *time.Time
	SoldTo    *string
	SoldSpot  *decimal.Decimal

	ShippingCharged *decimal.Decimal
	ShippingCost    *decimal.Decimal
}

// ItemPatch enumerates the Item attributes a partial update may overwrite.
// ID locates the target and is never altered; the coin reference cannot be
// reassigned through this path.
type ItemPatch struct {
	Year            *int32
	PurchasePrice   *decimal.Decimal
	PurchaseDate    *time.Time
	PurchasedFrom   *string
	PurchaseSpot    *decimal.Decimal
	Sold            *bool
	SoldPrice       *decimal.Decimal
	SoldDate        *time.Time
	SoldTo          *string
	SoldSpot        *decimal.Decimal
	ShippingCharged *decimal.Decimal
	ShippingCost    *decimal.Decimal
}

// Apply merges the present fields of the patch onto the item.
func (p *ItemPatch) Apply(item *Item) {
	if p.Year != nil {
		item.Year = p.Year
	}
	if p.PurchasePrice != nil {
		item.PurchasePrice = *p.PurchasePrice
	}
	if p.PurchaseDate != nil {
		item.PurchaseDate = *p.PurchaseDate
	}
	if p.PurchasedFrom != nil {
		item.PurchasedFrom = *p.PurchasedFrom
	}
	if p.PurchaseSpot != nil {
		item.PurchaseSpot = *p.PurchaseSpot
	}
	if p.Sold != nil {
		item.Sold = *p.Sold
	}
	if p.SoldPrice != nil {
		item.SoldPrice = p.SoldPrice
	}
	if p.SoldDate != nil {
		item.SoldDate = p.SoldDate
	}
	if p.SoldTo != nil {
		item.SoldTo = p.SoldTo
	}
	if p.SoldSpot != nil {
		item.SoldSpot = p.SoldSpot
	}
	if p.ShippingCharged != nil {
		item.ShippingCharged = p.ShippingCharged
	}
	if p.ShippingCost != nil {
		item.ShippingCost = p.ShippingCost
	}
}

// User represents a registered account, keyed by email address.
// Authenticated tracks the session state server-side so that logout
// invalidates outstanding session tokens.
type User struct {
	Email         string
	PasswordHash  string
	IsAdmin       bool
	Confirmed     bool
	Authenticated bool
}

// CoinRecord is the flattened JSON projection of a Coin returned by the
// coin list endpoint. The short URL keys mirror the historical API.
type CoinRecord struct {
	Name         string          `json:"name"`
	Weight       decimal.Decimal `json:"weight"`
	Metal        string          `json:"metal"`
	ActualWeight decimal.Decimal `json:"actual_weight"`
	NGC          string          `json:"ngc"`
	PCGS         string          `json:"pcgs"`
	JMB          string          `json:"jmb"`
	Apmex        string          `json:"apmex"`
	Shinybars    string          `json:"shinybars"`
	Provident    string          `json:"provident"`
}

// NewCoinRecord projects a Coin into its list representation.
func NewCoinRecord(coin *Coin) CoinRecord {
	return CoinRecord{
		Name:         coin.Name,
		Weight:       coin.Weight,
		Metal:        coin.Metal,
		ActualWeight: coin.ActualWeight,
		NGC:          coin.NGCURL,
		PCGS:         coin.PCGSURL,
		JMB:          coin.JMURL,
		Apmex:        coin.ApmexURL,
		Shinybars:    coin.ShinybarsURL,
		Provident:    coin.ProvidentURL,
	}
}

// CoinsResponse is the payload of GET /api/coin.
type CoinsResponse struct {
	Coins []CoinRecord `json:"coins"`
}

// ItemRecord is the full JSON projection of an Item returned by the item
// list endpoint.
type ItemRecord struct {
	ID              int32            `json:"id"`
	CoinName        string           `json:"coin_name"`
	Year            *int32           `json:"year"`
	PurchasePrice   decimal.Decimal  `json:"purchase_price"`
	PurchaseDate    string           `json:"purchase_date"`
	PurchasedFrom   string           `json:"purchased_from"`
	PurchaseSpot    decimal.Decimal  `json:"purchase_spot"`
	Sold            bool             `json:"sold"`
	SoldPrice       *decimal.Decimal `json:"sold_price"`
	SoldDate        *string          `json:"sold_date"`
	SoldTo          *string          `json:"sold_to"`
	SoldSpot        *decimal.Decimal `json:"sold_spot"`
	ShippingCharged *decimal.Decimal `json:"shipping_charged"`
	ShippingCost    *decimal.Decimal `json:"shipping_cost"`
}

// NewItemRecord projects an Item into its list representation.
func NewItemRecord(item *Item) ItemRecord {
	record := ItemRecord{
		ID:              item.ID,
		CoinName:        item.CoinName,
		Year:            item.Year,
		PurchasePrice:   item.PurchasePrice,
		PurchaseDate:    item.PurchaseDate.Format(DateLayout),
		PurchasedFrom:   item.PurchasedFrom,
		PurchaseSpot:    item.PurchaseSpot,
		Sold:            item.Sold,
		SoldPrice:       item.SoldPrice,
		SoldTo:          item.SoldTo,
		SoldSpot:        item.SoldSpot,
		ShippingCharged: item.ShippingCharged,
		ShippingCost:    item.ShippingCost,
	}
	if item.SoldDate != nil {
		soldDate := item.SoldDate.Format(DateLayout)
		record.SoldDate = &soldDate
	}
	return record
}

// ItemsResponse is the payload of GET /api/item.
type ItemsResponse struct {
	Items []ItemRecord `json:"items"`
}

// MessageResponse is the acknowledgment payload shared by the mutating API
// endpoints, for both success and error outcomes.
type MessageResponse struct {
	Message string `json:"message"`
}
