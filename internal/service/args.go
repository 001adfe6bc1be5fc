// Request-argument parsing and coercion for the JSON API. Each endpoint
// declares which fields it reads; unknown keys are ignored, missing required
// fields and coercion failures produce a ValidationError naming the field,
// and partial updates only pick up present, truthy values.
package service

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"stack_tracker/internal/models"

	"github.com/shopspring/decimal"
)

// ValidationError describes a missing or malformed request field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("field '%s' %s", e.Field, e.Reason)
}

func requiredField(field string) *ValidationError {
	return &ValidationError{Field: field, Reason: "is required"}
}

func badValue(field, expected string) *ValidationError {
	return &ValidationError{Field: field, Reason: "has a bad value: expected " + expected}
}

// formReader coerces flat query/form parameters into typed values.
// The first error wins; later accessors become no-ops once it is set.
type formReader struct {
	form url.Values
	err  error
}

// newFormReader merges the query string and any form body of the request.
func newFormReader(r *http.Request) (*formReader, error) {
	if err := r.ParseForm(); err != nil {
		return nil, err
	}
	return &formReader{form: r.Form}, nil
}

// Err returns the first validation error encountered, if any.
func (f *formReader) Err() error {
	if f.err != nil {
		return f.err
	}
	return nil
}

func (f *formReader) fail(err *ValidationError) {
	if f.err == nil {
		f.err = err
	}
}

// has reports whether the key was supplied at all.
func (f *formReader) has(name string) bool {
	_, ok := f.form[name]
	return ok
}

// str returns a required string field.
func (f *formReader) str(name string) string {
	if !f.has(name) {
		f.fail(requiredField(name))
		return ""
	}
	return f.form.Get(name)
}

// strDefault returns an optional string field, falling back to def.
func (f *formReader) strDefault(name, def string) string {
	if !f.has(name) {
		return def
	}
	return f.form.Get(name)
}

// strOpt returns an optional string field, nil when absent or empty.
func (f *formReader) strOpt(name string) *string {
	raw := f.form.Get(name)
	if raw == "" {
		return nil
	}
	return &raw
}

// list returns every supplied value for a repeatable field.
func (f *formReader) list(name string) []string {
	return f.form[name]
}

// intList coerces a repeatable field into int32 values.
func (f *formReader) intList(name string) []int32 {
	raw := f.form[name]
	parsed := make([]int32, 0, len(raw))
	for _, value := range raw {
		n, err := strconv.ParseInt(value, 10, 32)
		if err != nil {
			f.fail(badValue(name, "an integer"))
			return nil
		}
		parsed = append(parsed, int32(n))
	}
	return parsed
}

// intReq returns a required int32 field.
func (f *formReader) intReq(name string) int32 {
	if !f.has(name) {
		f.fail(requiredField(name))
		return 0
	}
	n, err := strconv.ParseInt(f.form.Get(name), 10, 32)
	if err != nil {
		f.fail(badValue(name, "an integer"))
		return 0
	}
	return int32(n)
}

// intOpt returns an optional int32 field, nil when absent, empty, or zero.
func (f *formReader) intOpt(name string) *int32 {
	raw := f.form.Get(name)
	if raw == "" {
		return nil
	}
	n, err := strconv.ParseInt(raw, 10, 32)
	if err != nil {
		f.fail(badValue(name, "an integer"))
		return nil
	}
	if n == 0 {
		return nil
	}
	value := int32(n)
	return &value
}

// decimalReq returns a required decimal field.
func (f *formReader) decimalReq(name string) decimal.Decimal {
	if !f.has(name) {
		f.fail(requiredField(name))
		return decimal.Decimal{}
	}
	value, err := decimal.NewFromString(f.form.Get(name))
	if err != nil {
		f.fail(badValue(name, "a number"))
		return decimal.Decimal{}
	}
	return value
}

// decimalOpt returns an optional decimal field, nil when absent, empty, or
// zero. Zero counts as absent so partial updates skip falsy values.
func (f *formReader) decimalOpt(name string) *decimal.Decimal {
	raw := f.form.Get(name)
	if raw == "" {
		return nil
	}
	value, err := decimal.NewFromString(raw)
	if err != nil {
		f.fail(badValue(name, "a number"))
		return nil
	}
	if value.IsZero() {
		return nil
	}
	return &value
}

// dateLayouts are the accepted purchase/sale date formats: ISO dates from
// the API, month-first dates from the HTML forms.
var dateLayouts = []string{models.DateLayout, "01-02-2006"}

func parseDate(raw string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// dateReq returns a required date field.
func (f *formReader) dateReq(name string) time.Time {
	if !f.has(name) {
		f.fail(requiredField(name))
		return time.Time{}
	}
	t, ok := parseDate(f.form.Get(name))
	if !ok {
		f.fail(badValue(name, "a date (YYYY-MM-DD)"))
		return time.Time{}
	}
	return t
}

// dateOpt returns an optional date field, nil when absent or empty.
func (f *formReader) dateOpt(name string) *time.Time {
	raw := f.form.Get(name)
	if raw == "" {
		return nil
	}
	t, ok := parseDate(raw)
	if !ok {
		f.fail(badValue(name, "a date (YYYY-MM-DD)"))
		return nil
	}
	return &t
}

// boolReq returns a required boolean field.
func (f *formReader) boolReq(name string) bool {
	if !f.has(name) {
		f.fail(requiredField(name))
		return false
	}
	value, err := strconv.ParseBool(f.form.Get(name))
	if err != nil {
		f.fail(badValue(name, "a boolean"))
		return false
	}
	return value
}

// boolOpt returns an optional boolean field, nil when absent or false.
// A false value never overwrites a stored flag on partial update.
func (f *formReader) boolOpt(name string) *bool {
	raw := f.form.Get(name)
	if raw == "" {
		return nil
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		f.fail(badValue(name, "a boolean"))
		return nil
	}
	if !value {
		return nil
	}
	return &value
}

// parseNewCoin coerces the coin-creation arguments.
func parseNewCoin(f *formReader) (*models.Coin, error) {
	coin := &models.Coin{
		Name:         f.str("name"),
		Weight:       f.decimalReq("weight"),
		ActualWeight: f.decimalReq("actual_weight"),
		Metal:        f.str("metal"),
		Country:      f.str("country"),
		NGCURL:       f.strDefault("ngc_url", ""),
		PCGSURL:      f.strDefault("pcgs_url", ""),
		JMURL:        f.strDefault("jm_url", ""),
		ApmexURL:     f.strDefault("apmex_url", ""),
		ShinybarsURL: f.strDefault("shinybars_url", ""),
		ProvidentURL: f.strDefault("provident_url", ""),
	}
	if f.err == nil && !models.ValidMetal(coin.Metal) {
		f.fail(badValue("metal", "one of gold, silver, platinum, palladium"))
	}
	if f.err == nil && !coin.Weight.IsPositive() {
		f.fail(badValue("weight", "a positive number"))
	}
	if f.err == nil && !coin.ActualWeight.IsPositive() {
		f.fail(badValue("actual_weight", "a positive number"))
	}
	return coin, f.Err()
}

// parseCoinPatch coerces the coin-update arguments: the locating name plus
// any present, truthy fields to overwrite.
func parseCoinPatch(f *formReader) (string, models.CoinPatch, error) {
	name := f.str("name")
	patch := models.CoinPatch{
		Weight:       f.decimalOpt("weight"),
		ActualWeight: f.decimalOpt("actual_weight"),
		Metal:        f.strOpt("metal"),
		Country:      f.strOpt("country"),

		NGCURL:       f.strOpt("ngc_url"),
		PCGSURL:      f.strOpt("pcgs_url"),
		JMURL:        f.strOpt("jm_url"),
		ApmexURL:     f.strOpt("apmex_url"),
		ShinybarsURL: f.strOpt("shinybars_url"),
		ProvidentURL: f.strOpt("provident_url"),

		CurrentNGC:       f.decimalOpt("current_ngc"),
		CurrentPCGS:      f.decimalOpt("current_pcgs"),
		CurrentJM:        f.decimalOpt("current_jm"),
		CurrentApmex:     f.decimalOpt("current_apmex"),
		CurrentShinybars: f.decimalOpt("current_shinybars"),
		CurrentProvident: f.decimalOpt("current_provident"),
	}
	if f.err == nil && patch.Metal != nil && !models.ValidMetal(*patch.Metal) {
		f.fail(badValue("metal", "one of gold, silver, platinum, palladium"))
	}
	return name, patch, f.Err()
}

// parseNewItem coerces the item-creation arguments. The coin name is
// returned separately; resolving it to a coin id is business logic.
func parseNewItem(f *formReader) (string, *models.Item, error) {
	coinName := f.str("coin_name")
	item := &models.Item{
		Year:          f.intOpt("year"),
		PurchasePrice: f.decimalReq("purchase_price"),
		PurchaseDate:  f.dateReq("purchase_date"),
		PurchasedFrom: f.str("purchased_from"),
		PurchaseSpot:  f.decimalReq("purchase_spot"),
		Sold:          f.boolReq("sold"),
		SoldPrice:     f.decimalOpt("sold_price"),
		SoldDate:      f.dateOpt("sold_date"),
		SoldTo:        f.strOpt("sold_to"),
		SoldSpot:      f.decimalOpt("sold_spot"),

		ShippingCharged: f.decimalOpt("shipping_charged"),
		ShippingCost:    f.decimalOpt("shipping_cost"),
	}
	return coinName, item, f.Err()
}

// parseItemPatch coerces the item-update arguments: the locating id plus
// any present, truthy fields to overwrite.
func parseItemPatch(f *formReader) (int32, models.ItemPatch, error) {
	id := f.intReq("id")
	patch := models.ItemPatch{
		Year:            f.intOpt("year"),
		PurchasePrice:   f.decimalOpt("purchase_price"),
		PurchaseDate:    f.dateOpt("purchase_date"),
		PurchasedFrom:   f.strOpt("purchased_from"),
		PurchaseSpot:    f.decimalOpt("purchase_spot"),
		Sold:            f.boolOpt("sold"),
		SoldPrice:       f.decimalOpt("sold_price"),
		SoldDate:        f.dateOpt("sold_date"),
		SoldTo:          f.strOpt("sold_to"),
		SoldSpot:        f.decimalOpt("sold_spot"),
		ShippingCharged: f.decimalOpt("shipping_charged"),
		ShippingCost:    f.decimalOpt("shipping_cost"),
	}
	return id, patch, f.Err()
}
