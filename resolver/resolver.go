// Package resolver maps an (exchange, market, user-supplied symbol) request
// to a concrete price or a typed Unresolved failure: a candidate-expansion
// algorithm that tries quote-currency aliases (USDT, USD) on the
// canonicalized base asset before giving up.
package resolver

import (
	"context"
	"math"

	"priceguard/exchange"
	"priceguard/xerr"
)

// Result is the resolver's positive outcome: a concrete price, the symbol
// form it was found under, and which adapter served it.
type Result struct {
	Price         float64
	ResolvedSymbol string
	Source        string
}

// quoteAliases are the alternate quote spellings candidate generation tries,
// in priority order.
var quoteAliases = []string{"USDT", "USD"}

// Resolve canonicalizes the symbol, expands quote aliases, tries a direct
// ticker fetch per candidate, then falls back to a batch lastPrices lookup
// restricted to this exchange's candidates only. It never silently reaches
// a different exchange than requested.
func Resolve(ctx context.Context, a exchange.Adapter, market exchange.Market, userSymbol string) (Result, error) {
	candidates := candidateSymbols(userSymbol)
	if len(candidates) == 0 {
		return Result{}, xerr.New(xerr.KindSymbolUnresolved, "no interpretable symbol form for "+userSymbol)
	}

	var lastUpstreamErr error
	for _, c := range candidates {
		t, err := a.Ticker(ctx, c, market)
		if err != nil {
			if xerr.Is(err, xerr.KindUpstreamUnavailable) {
				lastUpstreamErr = err
				continue
			}
			continue
		}
		if isPositiveFinite(t.LastPrice) {
			return Result{Price: t.LastPrice, ResolvedSymbol: c, Source: a.Name()}, nil
		}
	}

	prices, err := a.LastPrices(ctx, candidates, market, exchange.LastPricesOptions{Strict: true})
	if err != nil {
		if xerr.Is(err, xerr.KindUpstreamUnavailable) {
			return Result{}, xerr.Wrap(xerr.KindUpstreamUnavailable, "resolver: upstream unavailable for "+userSymbol, err)
		}
		lastUpstreamErr = err
	} else {
		for _, c := range candidates {
			if p, ok := prices[c]; ok && isPositiveFinite(p) {
				return Result{Price: p, ResolvedSymbol: c, Source: a.Name()}, nil
			}
		}
	}

	if lastUpstreamErr != nil && xerr.Is(lastUpstreamErr, xerr.KindUpstreamUnavailable) {
		return Result{}, xerr.Wrap(xerr.KindUpstreamUnavailable, "resolver: upstream unavailable for "+userSymbol, lastUpstreamErr)
	}
	return Result{}, xerr.New(xerr.KindSymbolUnresolved, "resolver: no candidate resolved for "+userSymbol)
}

// ResolveCrossExchange tries every registered adapter in exchange.Names
// order, used only for seeding initialPrice at alert-creation time; the
// sweep must never call this, since a triggered alert's price must come from
// the exchange it was created against.
func ResolveCrossExchange(ctx context.Context, reg *exchange.Registry, market exchange.Market, userSymbol string) (Result, error) {
	var lastErr error
	for _, name := range exchange.Names {
		a, err := reg.Get(name)
		if err != nil {
			continue
		}
		res, err := Resolve(ctx, a, market, userSymbol)
		if err == nil {
			return res, nil
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = xerr.New(xerr.KindSymbolUnresolved, "resolver: no adapters registered")
	}
	return Result{}, lastErr
}

// candidateSymbols expands the canonical form into the candidate list:
// canonicalize, then try each quote alias on the recovered base asset.
func candidateSymbols(userSymbol string) []string {
	canonical := exchange.Normalize(userSymbol)
	if canonical == "" {
		return nil
	}

	seen := map[string]struct{}{canonical: {}}
	out := []string{canonical}

	base := StripQuote(canonical)
	if base != "" {
		for _, q := range quoteAliases {
			cand := base + q
			if _, ok := seen[cand]; ok {
				continue
			}
			seen[cand] = struct{}{}
			out = append(out, cand)
		}
	}
	return out
}

// StripQuote removes a recognized quote-currency suffix from a canonical
// symbol (e.g. "BTCUSDT" -> "BTC"), returning "" if none of the known quote
// aliases match.
func StripQuote(canonical string) string {
	for _, q := range quoteAliases {
		if len(canonical) > len(q) && canonical[len(canonical)-len(q):] == q {
			return canonical[:len(canonical)-len(q)]
		}
	}
	return ""
}

func isPositiveFinite(f float64) bool {
	return f > 0 && !math.IsInf(f, 0) && !math.IsNaN(f)
}
