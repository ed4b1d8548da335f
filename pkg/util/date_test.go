package util

import (
	"strconv"
	"testing"
	"time"
)

func TestParseTimeRFC3339(t *testing.T) {
	s := "2024-10-10T10:10:10Z"
	got, ok := ParseTime(s)
	if !ok {
		t.Fatalf("expected ok")
	}
	if got.UTC().Format(time.RFC3339) != s {
		t.Fatalf("unexpected time %v", got)
	}
}

func TestParseTimeExchangeLayout(t *testing.T) {
	got, ok := ParseTime("2024-10-10T10:10:00")
	if !ok {
		t.Fatalf("expected ok")
	}
	want := time.Date(2024, 10, 10, 10, 10, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("got %v want %v", got, want)
	}
}

func TestParseTimeUnixMillis(t *testing.T) {
	ts := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC)
	got, ok := ParseTime(strconv.FormatInt(ts.UnixMilli(), 10))
	if !ok {
		t.Fatalf("expected ok")
	}
	if !got.Equal(ts) {
		t.Fatalf("unexpected time %v", got)
	}
}

func TestParseTimeDefault(t *testing.T) {
	def := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC)
	got := ParseTimeDefault("", def)
	if !got.Equal(def) {
		t.Fatalf("expected default")
	}
}

func TestWeekStartIsMonday(t *testing.T) {
	loc := time.FixedZone("KST", 9*3600)
	cases := []struct {
		in   time.Time
		want time.Time
	}{
		// Wednesday
		{time.Date(2024, 10, 16, 15, 0, 0, 0, loc), time.Date(2024, 10, 14, 0, 0, 0, 0, loc)},
		// Sunday belongs to the week started the previous Monday
		{time.Date(2024, 10, 20, 23, 59, 0, 0, loc), time.Date(2024, 10, 14, 0, 0, 0, 0, loc)},
		// Monday itself
		{time.Date(2024, 10, 21, 0, 0, 1, 0, loc), time.Date(2024, 10, 21, 0, 0, 0, 0, loc)},
	}
	for _, tc := range cases {
		if got := WeekStart(tc.in, loc); !got.Equal(tc.want) {
			t.Errorf("WeekStart(%v) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestDayStartUsesLocation(t *testing.T) {
	loc := time.FixedZone("KST", 9*3600)
	// 2024-10-15 20:00 UTC is already 2024-10-16 in KST
	in := time.Date(2024, 10, 15, 20, 0, 0, 0, time.UTC)
	got := DayStart(in, loc)
	if got.Day() != 16 || got.Hour() != 0 {
		t.Fatalf("unexpected day start %v", got)
	}
	if DayLabel(got) != "10-16" {
		t.Fatalf("unexpected label %s", DayLabel(got))
	}
}

func TestParseMarketList(t *testing.T) {
	got := ParseMarketList(" btc, KRW-ETH ,,xrp,BTC", "KRW")
	want := []string{"KRW-BTC", "KRW-ETH", "KRW-XRP"}
	if len(got) != len(want) {
		t.Fatalf("got %v want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v want %v", got, want)
		}
	}
	if ParseMarketList("   ", "KRW") != nil {
		t.Fatalf("expected nil for blank list")
	}
}
