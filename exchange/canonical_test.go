package exchange

import "testing"

func TestNormalize_KnownForms(t *testing.T) {
	cases := map[string]string{
		"btc/usdt":      "BTCUSDT",
		"BTCUSDT.P":     "BTCUSDT",
		"btc-usdt-swap": "BTCUSDT",
		"BTC_USDT":      "BTCUSDT",
		"ETH-PERPETUAL": "ETH",
		"BTCUSDTM":      "BTCUSDT",
		"xrpusdt":       "XRPUSDT",
	}
	for in, want := range cases {
		if got := Normalize(in); got != want {
			t.Errorf("Normalize(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	inputs := []string{"btc/usdt", "BTCUSDT.P", "btc-usdt-swap", "BTC_USDT", "ethusdt", ""}
	for _, in := range inputs {
		once := Normalize(in)
		twice := Normalize(once)
		if once != twice {
			t.Errorf("Normalize not idempotent for %q: once=%q twice=%q", in, once, twice)
		}
	}
}

func TestNormalize_Empty(t *testing.T) {
	if got := Normalize(""); got != "" {
		t.Errorf("Normalize(\"\") = %q, want empty", got)
	}
	if got := Normalize("   "); got != "" {
		t.Errorf("Normalize(whitespace) = %q, want empty", got)
	}
}
