package data_test

import (
	"context"
	"errors"
	"math"
	"reflect"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/tradeforge/trading-backend/internal/data"
)

func fixedClock() time.Time {
	return time.Date(2024, 6, 3, 15, 30, 0, 0, time.UTC)
}

func TestCatalog(t *testing.T) {
	indices := data.Indices()
	if len(indices) != 10 {
		t.Fatalf("Expected 10 indices, got %d", len(indices))
	}
	if indices[0].Symbol != "NIFTY 50" || indices[0].Ticker != "^NSEI" {
		t.Errorf("Catalog order incorrect: %+v", indices[0])
	}

	info, ok := data.Lookup("nifty  50")
	if !ok {
		t.Fatal("Case-insensitive lookup failed")
	}
	if info.Exchange != "NSE" {
		t.Errorf("Expected NSE, got %s", info.Exchange)
	}

	if _, ok := data.Lookup("DOW JONES"); ok {
		t.Error("Unknown symbol should not resolve")
	}
}

func TestSyntheticHistoryIsDeterministic(t *testing.T) {
	provider := data.NewSynthetic(zap.NewNop())
	provider.Now = fixedClock

	first, err := provider.History(context.Background(), "NIFTY 50", "1mo", "1d")
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	second, err := provider.History(context.Background(), "NIFTY 50", "1mo", "1d")
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}

	if !reflect.DeepEqual(first, second) {
		t.Error("Repeated synthetic history calls should be identical")
	}
	if len(first) != 30 {
		t.Errorf("Expected 30 daily bars for 1mo, got %d", len(first))
	}
	if err := data.ValidateSeries(first); err != nil {
		t.Errorf("Synthetic series should validate: %v", err)
	}

	// Different symbols walk differently.
	other, err := provider.History(context.Background(), "SENSEX", "1mo", "1d")
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if first[0].Close == other[0].Close {
		t.Error("Different symbols should not share a walk")
	}
}

func TestSyntheticHistoryBounds(t *testing.T) {
	provider := data.NewSynthetic(zap.NewNop())
	provider.Now = fixedClock

	// 2y of 1h bars would exceed the cap.
	long, err := provider.History(context.Background(), "NIFTY IT", "2y", "1h")
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(long) != 5000 {
		t.Errorf("Expected capped series of 5000 bars, got %d", len(long))
	}

	if _, err := provider.History(context.Background(), "NIFTY 50", "nope", "1d"); err == nil {
		t.Error("Invalid period should be rejected")
	}
	if _, err := provider.History(context.Background(), "NIFTY 50", "1mo", "nope"); err == nil {
		t.Error("Invalid interval should be rejected")
	}
}

func TestSyntheticQuote(t *testing.T) {
	provider := data.NewSynthetic(zap.NewNop())
	provider.Now = fixedClock

	quote, err := provider.Quote(context.Background(), "SENSEX")
	if err != nil {
		t.Fatalf("Quote failed: %v", err)
	}

	history, err := provider.History(context.Background(), "SENSEX", "5d", "1d")
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	last := history[len(history)-1]
	prev := history[len(history)-2]

	if quote.Price != last.Close {
		t.Errorf("Quote price should be the last close: %v vs %v", quote.Price, last.Close)
	}
	if quote.PreviousClose != prev.Close {
		t.Errorf("Previous close mismatch: %v vs %v", quote.PreviousClose, prev.Close)
	}
	if math.Abs(quote.Change-(last.Close-prev.Close)) > 0.01 {
		t.Errorf("Change inconsistent: %v", quote.Change)
	}
	if quote.Exchange != "BSE" {
		t.Errorf("Expected BSE, got %s", quote.Exchange)
	}
}

func TestSyntheticOptionChain(t *testing.T) {
	provider := data.NewSynthetic(zap.NewNop())
	provider.Now = fixedClock

	chain, err := provider.OptionChain(context.Background(), "NIFTY 50")
	if err != nil {
		t.Fatalf("OptionChain failed: %v", err)
	}

	if len(chain.Calls) != 11 || len(chain.Puts) != 11 {
		t.Fatalf("Expected 11 strikes each side, got %d calls, %d puts",
			len(chain.Calls), len(chain.Puts))
	}

	expiry, err := time.Parse("2006-01-02", chain.Expiry)
	if err != nil {
		t.Fatalf("Unparseable expiry %q: %v", chain.Expiry, err)
	}
	if expiry.Weekday() != time.Thursday {
		t.Errorf("Weekly expiry should fall on Thursday, got %s", expiry.Weekday())
	}
	if !expiry.After(fixedClock()) {
		t.Error("Expiry should be in the future")
	}

	quote, _ := provider.Quote(context.Background(), "NIFTY 50")
	info, _ := data.Lookup("NIFTY 50")
	for i, call := range chain.Calls {
		if i > 0 {
			if step := call.Strike - chain.Calls[i-1].Strike; step != info.StrikeStep {
				t.Errorf("Strike spacing incorrect at %d: %v", i, step)
			}
		}
		if intrinsic := math.Max(quote.Price-call.Strike, 0); call.LastPrice < intrinsic {
			t.Errorf("Call at %v priced below intrinsic value", call.Strike)
		}
		if call.Bid > call.Ask {
			t.Errorf("Call at %v has crossed bid/ask", call.Strike)
		}
	}
}

func TestSyntheticUnknownSymbol(t *testing.T) {
	provider := data.NewSynthetic(zap.NewNop())
	provider.Now = fixedClock

	if _, err := provider.Quote(context.Background(), "FTSE 100"); !errors.Is(err, data.ErrUnknownSymbol) {
		t.Errorf("Expected ErrUnknownSymbol, got %v", err)
	}
	if _, err := provider.History(context.Background(), "FTSE 100", "1mo", "1d"); !errors.Is(err, data.ErrUnknownSymbol) {
		t.Errorf("Expected ErrUnknownSymbol, got %v", err)
	}
	if _, err := provider.OptionChain(context.Background(), "FTSE 100"); !errors.Is(err, data.ErrUnknownSymbol) {
		t.Errorf("Expected ErrUnknownSymbol, got %v", err)
	}
}
