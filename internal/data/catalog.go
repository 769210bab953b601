// Package data provides market data access for NSE and BSE indices:
// a provider abstraction over upstream quote feeds, a deterministic
// synthetic provider for offline use, and a JSON-file-backed history
// cache.
package data

import (
	"github.com/tradeforge/trading-backend/pkg/types"
	"github.com/tradeforge/trading-backend/pkg/utils"
)

// IndexInfo describes one tracked index.
type IndexInfo struct {
	Symbol   string         `json:"symbol"`
	Ticker   string         `json:"ticker"`
	Exchange types.Exchange `json:"exchange"`

	// Reference level and strike spacing used by the synthetic provider.
	BaseLevel  float64 `json:"-"`
	StrikeStep float64 `json:"-"`
}

// nseIndices are the NSE sector indices tracked by the platform.
var nseIndices = []IndexInfo{
	{Symbol: "NIFTY 50", Ticker: "^NSEI", Exchange: types.ExchangeNSE, BaseLevel: 22500, StrikeStep: 50},
	{Symbol: "NIFTY BANK", Ticker: "^NSEBANK", Exchange: types.ExchangeNSE, BaseLevel: 48000, StrikeStep: 100},
	{Symbol: "NIFTY IT", Ticker: "^CNXIT", Exchange: types.ExchangeNSE, BaseLevel: 37000, StrikeStep: 100},
	{Symbol: "NIFTY AUTO", Ticker: "^CNXAUTO", Exchange: types.ExchangeNSE, BaseLevel: 21500, StrikeStep: 50},
	{Symbol: "NIFTY PHARMA", Ticker: "^CNXPHARMA", Exchange: types.ExchangeNSE, BaseLevel: 18500, StrikeStep: 50},
	{Symbol: "NIFTY FMCG", Ticker: "^CNXFMCG", Exchange: types.ExchangeNSE, BaseLevel: 54000, StrikeStep: 100},
	{Symbol: "NIFTY METAL", Ticker: "^CNXMETAL", Exchange: types.ExchangeNSE, BaseLevel: 8800, StrikeStep: 25},
}

// bseIndices are the BSE indices tracked by the platform.
var bseIndices = []IndexInfo{
	{Symbol: "SENSEX", Ticker: "^BSESN", Exchange: types.ExchangeBSE, BaseLevel: 74000, StrikeStep: 100},
	{Symbol: "BSE 100", Ticker: "^BSE100", Exchange: types.ExchangeBSE, BaseLevel: 23500, StrikeStep: 50},
	{Symbol: "BSE 200", Ticker: "^BSE200", Exchange: types.ExchangeBSE, BaseLevel: 10200, StrikeStep: 25},
}

var catalog = buildCatalog()

func buildCatalog() map[string]IndexInfo {
	m := make(map[string]IndexInfo, len(nseIndices)+len(bseIndices))
	for _, info := range nseIndices {
		m[info.Symbol] = info
	}
	for _, info := range bseIndices {
		m[info.Symbol] = info
	}
	return m
}

// Indices returns all tracked indices, NSE first, in catalog order.
func Indices() []IndexInfo {
	out := make([]IndexInfo, 0, len(nseIndices)+len(bseIndices))
	out = append(out, nseIndices...)
	out = append(out, bseIndices...)
	return out
}

// Lookup resolves a display symbol to its index info. The lookup is
// case-insensitive and tolerant of extra whitespace.
func Lookup(symbol string) (IndexInfo, bool) {
	info, ok := catalog[utils.FormatSymbol(symbol)]
	return info, ok
}
