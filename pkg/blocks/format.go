package blocks

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"flashcompare/pkg/constant"
)

const (
	defaultGasLimit = constant.DefaultGasLimit

	invalidHex       = "Invalid hex"
	invalidTimestamp = "Invalid timestamp"
	unknownFormat    = "Unknown format"

	timestampLayout = "2006-01-02 15:04:05 MST"
)

func trimHexPrefix(number string) string {
	return strings.TrimPrefix(strings.ToLower(strings.TrimSpace(number)), "0x")
}

// ParseHexNum parses a hex quantity with or without the 0x prefix.
func ParseHexNum(number string) (uint64, error) {
	trimmed := trimHexPrefix(number)
	if trimmed == "" {
		return 0, fmt.Errorf("empty hex quantity %q", number)
	}
	return strconv.ParseUint(trimmed, 16, 64)
}

func equalHex(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

// HexToDecimal renders a hex quantity as a decimal with thousands separators.
func HexToDecimal(hexValue string) string {
	n, err := ParseHexNum(hexValue)
	if err != nil {
		return invalidHex
	}
	return FormatThousands(n)
}

// FormatThousands renders n with comma thousands separators.
func FormatThousands(n uint64) string {
	s := strconv.FormatUint(n, 10)
	if len(s) <= 3 {
		return s
	}

	var b strings.Builder
	head := len(s) % 3
	if head > 0 {
		b.WriteString(s[:head])
	}
	for i := head; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}

// FormatTimestamp renders a unix timestamp in seconds in the given location.
func FormatTimestamp(unixSec uint64, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	return time.Unix(int64(unixSec), 0).In(loc).Format(timestampLayout)
}

// FormatHexTimestamp renders a hex encoded unix timestamp in seconds.
func FormatHexTimestamp(hexTimestamp string, loc *time.Location) string {
	sec, err := ParseHexNum(hexTimestamp)
	if err != nil {
		return invalidTimestamp
	}
	return FormatTimestamp(sec, loc)
}

// ShortHash abbreviates a hash as its first 10 and last 8 characters.
func ShortHash(hash string) string {
	if hash == "" {
		return unknownFormat
	}
	if len(hash) <= 18 {
		return hash
	}
	return hash[:10] + "..." + hash[len(hash)-8:]
}

// GasPercentage returns used as a percentage of limit, capped at 100.
func GasPercentage(used, limit uint64) float64 {
	if limit == 0 {
		return 0
	}
	p := float64(used) / float64(limit) * 100
	if p > 100 {
		return 100
	}
	return p
}

// FormatGas renders gas usage as "used / limit (p%)".
func FormatGas(used, limit uint64) string {
	return fmt.Sprintf("%s / %s (%.2f%%)", FormatThousands(used), FormatThousands(limit), GasPercentage(used, limit))
}

// FormatElapsed renders a duration in seconds with two decimals.
func FormatElapsed(d time.Duration) string {
	return fmt.Sprintf("%.2fs", d.Seconds())
}

// FormatRatio renders a speed ratio with one decimal.
func FormatRatio(r float64) string {
	return fmt.Sprintf("%.1fx", r)
}
