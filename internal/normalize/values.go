// Package normalize converts raw cell text into cleaned domain values. All
// functions are total: malformed input becomes an absent value, never an
// error, because malformed numerics are data-quality noise rather than
// structural failures.
package normalize

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// serialEpoch anchors the 1900 date system two days before the nominal epoch
// to absorb the spreadsheet leap-year quirk: serial 1 maps to 1899-12-31.
var serialEpoch = time.Date(1899, time.December, 30, 0, 0, 0, 0, time.UTC)

// CleanText trims whitespace and maps empty text and the literal token
// "NULL" (any case) to absent. The empty string is the absent sentinel for
// all text values in the pipeline.
func CleanText(s string) string {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "NULL") {
		return ""
	}
	return s
}

// ToNumber strips thousands separators, currency symbols and a trailing
// percent sign, then parses the remainder as a decimal number.
func ToNumber(s string) (float64, bool) {
	s = CleanText(s)
	if s == "" {
		return 0, false
	}
	s = strings.ReplaceAll(s, ",", "")
	s = strings.ReplaceAll(s, "$", "")
	s = strings.TrimSuffix(s, "%")
	x, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return x, true
}

// ToInteger parses as ToNumber and rounds to the nearest integer, half away
// from zero. Absent propagates.
func ToInteger(s string) (int64, bool) {
	x, ok := ToNumber(s)
	if !ok {
		return 0, false
	}
	return int64(math.Round(x)), true
}

// DateFromSerial interprets a numeric value as a day count in the 1900-epoch
// date system and returns an ISO calendar date. Non-positive serials are
// absent. Non-numeric input is first tried as an ISO date; otherwise the raw
// text is returned truncated to ten characters.
func DateFromSerial(s string) string {
	s = CleanText(s)
	if s == "" {
		return ""
	}
	x, err := strconv.ParseFloat(s, 64)
	if err != nil {
		head := truncate(s, 10)
		if d, perr := time.Parse("2006-01-02", head); perr == nil {
			return d.Format("2006-01-02")
		}
		return head
	}
	if x <= 0 {
		return ""
	}
	return serialEpoch.AddDate(0, 0, int(math.Floor(x))).Format("2006-01-02")
}

// TimestampFromSerial is DateFromSerial with the fractional day resolved to a
// time of day at second precision. Non-numeric input is returned verbatim.
func TimestampFromSerial(s string) string {
	s = CleanText(s)
	if s == "" {
		return ""
	}
	x, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return s
	}
	if x <= 0 {
		return ""
	}
	secs := int64(math.Round(x * 86400 * 1e6)) / 1e6
	return serialEpoch.Add(time.Duration(secs) * time.Second).Format("2006-01-02 15:04:05")
}

// truncate returns at most n runes of s.
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
