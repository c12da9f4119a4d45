package formance

import (
	"testing"
)

// ---------- Unit tests for pure helpers (no Formance stack needed) ----------

func TestFormanceAsset(t *testing.T) {
	tests := []struct {
		symbol string
		want   string
	}{
		{"USDT", "USDT/6"},
		{"BTC", "BTC/8"},
		{"ETH", "ETH/18"},
		{"UNKNOWN", "UNKNOWN/6"}, // default precision
	}
	for _, tt := range tests {
		if got := formanceAsset(tt.symbol); got != tt.want {
			t.Errorf("formanceAsset(%q) = %q, want %q", tt.symbol, got, tt.want)
		}
	}
}

func TestPrecisionFor(t *testing.T) {
	if precisionFor("USDT") != 6 {
		t.Error("expected USDT precision 6")
	}
	if precisionFor("BTC") != 8 {
		t.Error("expected BTC precision 8")
	}
	if precisionFor("ETH") != 18 {
		t.Error("expected ETH precision 18")
	}
	if precisionFor("DOGE") != 6 {
		t.Error("expected unknown precision default 6")
	}
}
