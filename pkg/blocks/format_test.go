package blocks

import (
	"testing"
	"time"
)

func TestHexToDecimal(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "small", in: "0x2a", want: "42"},
		{name: "thousands", in: "0x1c9c380", want: "30,000,000"},
		{name: "no prefix", in: "3e8", want: "1,000"},
		{name: "upper case", in: "0XFF", want: "255"},
		{name: "zero", in: "0x0", want: "0"},
		{name: "empty", in: "", want: invalidHex},
		{name: "garbage", in: "0xzz", want: invalidHex},
		{name: "prefix not leading", in: "10x", want: invalidHex},
		{name: "prefix only", in: "0x", want: invalidHex},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HexToDecimal(tt.in); got != tt.want {
				t.Fatalf("HexToDecimal(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestFormatThousands(t *testing.T) {
	for in, want := range map[uint64]string{
		0:          "0",
		999:        "999",
		1000:       "1,000",
		123456:     "123,456",
		1234567:    "1,234,567",
		1000000000: "1,000,000,000",
	} {
		if got := FormatThousands(in); got != want {
			t.Fatalf("FormatThousands(%d) = %q, want %q", in, got, want)
		}
	}
}

func TestFormatHexTimestamp(t *testing.T) {
	if got := FormatHexTimestamp("0x65a8b4c0", time.UTC); got != "2024-01-18 05:18:56 UTC" {
		t.Fatalf("unexpected timestamp %q", got)
	}
	if got := FormatHexTimestamp("nope", time.UTC); got != invalidTimestamp {
		t.Fatalf("expected %q, got %q", invalidTimestamp, got)
	}
}

func TestShortHash(t *testing.T) {
	hash := "0x1111111111222222222233333333334444444444555555555566666666667777"
	if got := ShortHash(hash); got != "0x11111111...66667777" {
		t.Fatalf("unexpected short hash %q", got)
	}
	if got := ShortHash("0xabc"); got != "0xabc" {
		t.Fatalf("short input should be returned as is, got %q", got)
	}
	if got := ShortHash(""); got != unknownFormat {
		t.Fatalf("expected %q, got %q", unknownFormat, got)
	}
}

func TestGasPercentage(t *testing.T) {
	if got := GasPercentage(15_000_000, 30_000_000); got != 50 {
		t.Fatalf("expected 50, got %v", got)
	}
	if got := GasPercentage(40, 20); got != 100 {
		t.Fatalf("percentage should be capped at 100, got %v", got)
	}
	if got := GasPercentage(1, 0); got != 0 {
		t.Fatalf("zero limit should give 0, got %v", got)
	}
}

func TestFormatElapsedAndRatio(t *testing.T) {
	if got := FormatElapsed(1900 * time.Millisecond); got != "1.90s" {
		t.Fatalf("unexpected elapsed %q", got)
	}
	if got := FormatRatio(1900.0 / 210.0); got != "9.0x" {
		t.Fatalf("unexpected ratio %q", got)
	}
}

func TestEffectiveGasLimit(t *testing.T) {
	base := &Record{IsBase: true, Base: &BaseMetadata{GasLimit: 60_000_000}}

	if got := (Record{GasLimit: 10}).EffectiveGasLimit(base); got != 10 {
		t.Fatalf("own gas limit should win, got %d", got)
	}
	if got := (Record{}).EffectiveGasLimit(base); got != 60_000_000 {
		t.Fatalf("expected base gas limit, got %d", got)
	}
	if got := (Record{}).EffectiveGasLimit(nil); got != defaultGasLimit {
		t.Fatalf("expected default gas limit, got %d", got)
	}
}
