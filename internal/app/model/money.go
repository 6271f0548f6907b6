package model

import "github.com/shopspring/decimal"

// UseNumericMoneyJSON makes every decimal amount in the process encode as a
// JSON number instead of a quoted string. The storefront UI sums SubTotal
// client-side. Call it once from main before serving; it is global to the
// decimal package, so event payloads and websocket frames follow it too.
func UseNumericMoneyJSON() {
	decimal.MarshalJSONWithoutQuotes = true
}
