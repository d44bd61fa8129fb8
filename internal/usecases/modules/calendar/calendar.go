// Package calendar answers whether the KRX equity market is open.
package calendar

import (
	"embed"
	"encoding/json"
	"time"
)

const (
	startTradeYear int = 2025
	endTradeYear   int = 2026
)

// KRX regular session bounds.
const (
	sessionOpenHour    = 9
	sessionCloseHour   = 15
	sessionCloseMinute = 30
)

// Session is one trading day's regular session window.
type Session struct {
	Open  time.Time
	Close time.Time
}

// Contains reports whether t falls inside the session.
func (s Session) Contains(t time.Time) bool {
	return !t.Before(s.Open) && t.Before(s.Close)
}

type Calendar interface {
	IsTradeDay(date time.Time) bool
	TradeSession(date time.Time) Session
	NextTradeDay(from time.Time) time.Time
	LastTradeDay(from time.Time) time.Time
	IsOpen(t time.Time) bool
}

//go:embed holiday.json
var files embed.FS

type calendar struct {
	holidayTimeMap map[time.Time]struct{}
	tradeDayMap    map[time.Time]struct{}
}

func NewCalendar() Calendar {
	t := &calendar{
		holidayTimeMap: make(map[time.Time]struct{}),
		tradeDayMap:    make(map[time.Time]struct{}),
	}
	t.fillHoliday()
	t.fillTradeDay()
	return t
}

func dateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.Local)
}

func (t *calendar) IsTradeDay(date time.Time) bool {
	_, ok := t.tradeDayMap[dateOf(date)]
	return ok
}

// TradeSession returns the regular session window for the trade day on
// or after date.
func (t *calendar) TradeSession(date time.Time) Session {
	d := t.NextTradeDay(date)
	return Session{
		Open:  d.Add(sessionOpenHour * time.Hour),
		Close: d.Add(sessionCloseHour*time.Hour + sessionCloseMinute*time.Minute),
	}
}

// NextTradeDay returns the first trade day on or after from, at
// midnight local time.
func (t *calendar) NextTradeDay(from time.Time) time.Time {
	d := dateOf(from)
	for !t.IsTradeDay(d) {
		d = d.AddDate(0, 0, 1)
	}
	return d
}

// LastTradeDay returns the most recent trade day strictly before from.
func (t *calendar) LastTradeDay(from time.Time) time.Time {
	d := dateOf(from).AddDate(0, 0, -1)
	for !t.IsTradeDay(d) {
		d = d.AddDate(0, 0, -1)
	}
	return d
}

// IsOpen reports whether the regular session is running at t.
func (t *calendar) IsOpen(at time.Time) bool {
	if !t.IsTradeDay(at) {
		return false
	}
	d := dateOf(at)
	session := Session{
		Open:  d.Add(sessionOpenHour * time.Hour),
		Close: d.Add(sessionCloseHour*time.Hour + sessionCloseMinute*time.Minute),
	}
	return session.Contains(at)
}

type holidayList struct {
	List []string `json:"list"`
}

func (t *calendar) fillHoliday() {
	tmp := holidayList{}
	content, err := files.ReadFile("holiday.json")
	if err != nil {
		panic(err)
	}

	if err = json.Unmarshal(content, &tmp); err != nil {
		panic(err)
	}

	for _, v := range tmp.List {
		tm, pErr := time.ParseInLocation(time.DateOnly, v, time.Local)
		if pErr != nil {
			panic(pErr)
		}

		t.holidayTimeMap[tm] = struct{}{}
	}
}

func (t *calendar) fillTradeDay() {
	tm := time.Date(startTradeYear, 1, 1, 0, 0, 0, 0, time.Local)
	for {
		if tm.Year() > endTradeYear {
			break
		}
		if tm.Weekday() != time.Saturday && tm.Weekday() != time.Sunday && !t.isHoliday(tm) {
			t.tradeDayMap[tm] = struct{}{}
		}
		tm = tm.AddDate(0, 0, 1)
	}
}

func (t *calendar) isHoliday(date time.Time) bool {
	_, ok := t.holidayTimeMap[date]
	return ok
}
