package data

import (
	"math"
	"testing"
	"time"
)

func d(y int, m time.Month, day int) time.Time {
	return time.Date(y, m, day, 0, 0, 0, 0, time.UTC)
}

func TestNewPriceSeries_SortsAndLogs(t *testing.T) {
	dates := []time.Time{d(2024, 1, 3), d(2024, 1, 1), d(2024, 1, 2)}
	prices := []float64{30, 10, 20}

	s := NewPriceSeries("aaa", dates, prices)
	if s.Len() != 3 {
		t.Fatalf("len = %d, want 3", s.Len())
	}
	wantDates := []time.Time{d(2024, 1, 1), d(2024, 1, 2), d(2024, 1, 3)}
	wantLogs := []float64{math.Log(10), math.Log(20), math.Log(30)}
	for i, o := range s.Obs {
		if !o.Date.Equal(wantDates[i]) {
			t.Errorf("date[%d] = %v, want %v", i, o.Date, wantDates[i])
		}
		if math.Abs(o.LogPrice-wantLogs[i]) > 1e-15 {
			t.Errorf("log[%d] = %v, want %v", i, o.LogPrice, wantLogs[i])
		}
	}
}

func TestNewPriceSeries_DuplicateDatesKeepLast(t *testing.T) {
	dates := []time.Time{d(2024, 1, 1), d(2024, 1, 1)}
	prices := []float64{10, 40}

	s := NewPriceSeries("A", dates, prices)
	if s.Len() != 1 {
		t.Fatalf("len = %d, want 1", s.Len())
	}
	if got := s.Obs[0].LogPrice; math.Abs(got-math.Log(40)) > 1e-15 {
		t.Errorf("duplicate date kept %v, want log(40)", got)
	}
}

func TestNewPriceSeries_DropsBadPrices(t *testing.T) {
	dates := []time.Time{d(2024, 1, 1), d(2024, 1, 2), d(2024, 1, 3), d(2024, 1, 4), d(2024, 1, 5)}
	prices := []float64{10, -5, 0, math.NaN(), math.Inf(1)}

	s := NewPriceSeries("A", dates, prices)
	if s.Len() != 1 {
		t.Errorf("len = %d, want 1 (non-positive and non-finite prices dropped)", s.Len())
	}
}

func TestSlice(t *testing.T) {
	dates := []time.Time{d(2024, 1, 1), d(2024, 1, 2), d(2024, 1, 3), d(2024, 1, 4)}
	prices := []float64{1, 2, 3, 4}
	s := NewPriceSeries("A", dates, prices)

	sub := s.Slice(d(2024, 1, 2), d(2024, 1, 3))
	if sub.Len() != 2 {
		t.Fatalf("slice len = %d, want 2", sub.Len())
	}
	if !sub.Obs[0].Date.Equal(d(2024, 1, 2)) || !sub.Obs[1].Date.Equal(d(2024, 1, 3)) {
		t.Error("slice bounds are inclusive on both ends")
	}

	if s.Slice(d(2025, 1, 1), d(2025, 2, 1)).Len() != 0 {
		t.Error("out-of-range slice should be empty")
	}
}

func TestAlign_InnerJoin(t *testing.T) {
	s1 := PriceSeries{Ticker: "A", Obs: []Observation{
		{Date: d(2024, 1, 1), LogPrice: 1},
		{Date: d(2024, 1, 2), LogPrice: 2},
		{Date: d(2024, 1, 4), LogPrice: 4},
	}}
	s2 := PriceSeries{Ticker: "B", Obs: []Observation{
		{Date: d(2024, 1, 2), LogPrice: 20},
		{Date: d(2024, 1, 3), LogPrice: 30},
		{Date: d(2024, 1, 4), LogPrice: 40},
	}}

	a := Align(s1, s2)
	if a.Len() != 2 {
		t.Fatalf("aligned len = %d, want 2", a.Len())
	}
	if !a.Dates[0].Equal(d(2024, 1, 2)) || !a.Dates[1].Equal(d(2024, 1, 4)) {
		t.Error("aligned dates should be the shared dates only")
	}
	if a.LP1[0] != 2 || a.LP2[0] != 20 || a.LP1[1] != 4 || a.LP2[1] != 40 {
		t.Error("aligned values out of order")
	}
}

func TestAlign_Disjoint(t *testing.T) {
	s1 := PriceSeries{Obs: []Observation{{Date: d(2024, 1, 1)}}}
	s2 := PriceSeries{Obs: []Observation{{Date: d(2024, 1, 2)}}}
	if Align(s1, s2).Len() != 0 {
		t.Error("disjoint series should align to nothing")
	}
}

func TestBusinessDays(t *testing.T) {
	// 2024-01-05 is a Friday; the next business day is Monday the 8th.
	got := BusinessDays(d(2024, 1, 5), d(2024, 1, 9))
	want := []time.Time{d(2024, 1, 5), d(2024, 1, 8), d(2024, 1, 9)}
	if len(got) != len(want) {
		t.Fatalf("got %d days, want %d", len(got), len(want))
	}
	for i := range want {
		if !got[i].Equal(want[i]) {
			t.Errorf("day[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestBusinessDaysFrom(t *testing.T) {
	// Starting on a Saturday rolls forward to Monday.
	got := BusinessDaysFrom(d(2024, 1, 6), 3)
	want := []time.Time{d(2024, 1, 8), d(2024, 1, 9), d(2024, 1, 10)}
	for i := range want {
		if !got[i].Equal(want[i]) {
			t.Errorf("day[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestUnionDates(t *testing.T) {
	series := map[string]PriceSeries{
		"A": {Obs: []Observation{{Date: d(2024, 1, 2)}, {Date: d(2024, 1, 3)}}},
		"B": {Obs: []Observation{{Date: d(2024, 1, 1)}, {Date: d(2024, 1, 3)}}},
	}
	got := UnionDates(series)
	want := []time.Time{d(2024, 1, 1), d(2024, 1, 2), d(2024, 1, 3)}
	if len(got) != len(want) {
		t.Fatalf("union has %d dates, want %d", len(got), len(want))
	}
	for i := range want {
		if !got[i].Equal(want[i]) {
			t.Errorf("union[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}
