// Package kis implements the Korea Investment & Securities realtime feed:
// wire codec, credential provider, subscription registry and the
// connection supervisor that ties them together.
package kis

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

const (
	// TrIDOrderBook is the order-book (asking price) stream for regular stocks.
	TrIDOrderBook = "H0UNASP0"
	// TrIDOrderBookELW is the order-book stream for ELW and warrant-like codes.
	TrIDOrderBookELW = "H0STASP0"
	// TrIDTrade is the executed-trade (tick) stream.
	TrIDTrade = "H0STCNT0"
)

const maxCodeLength = 12

// Record is a decoded realtime frame. Both record kinds carry the
// normalized instrument code they belong to.
type Record interface {
	InstrumentCode() string
	TransactionID() string
}

// Tick is one executed trade. JSON field names follow the provider's
// field naming, which the browser side consumes as-is.
type Tick struct {
	Code        string  `json:"MKSC_SHRN_ISCD"`
	TradeHour   string  `json:"STCK_CNTG_HOUR"`
	Price       int64   `json:"STCK_PRPR"`
	ChangeSign  string  `json:"PRDY_VRSS_SIGN"`
	Change      int64   `json:"PRDY_VRSS"`
	ChangeRate  float64 `json:"PRDY_CTRT"`
	Open        int64   `json:"STCK_OPRC"`
	High        int64   `json:"STCK_HGPR"`
	Low         int64   `json:"STCK_LWPR"`
	AskPrice    int64   `json:"ASKP1"`
	BidPrice    int64   `json:"BIDP1"`
	TradeVolume int64   `json:"CNTG_VOL"`
	AccVolume   int64   `json:"ACML_VOL"`
}

func (t *Tick) InstrumentCode() string { return t.Code }
func (t *Tick) TransactionID() string  { return TrIDTrade }

// Depth is one order-book snapshot, ten levels per side.
type Depth struct {
	Code          string
	Hour          string
	AskPrices     [10]int64
	BidPrices     [10]int64
	AskQuantities [10]int64
	BidQuantities [10]int64
	TotalAskQty   int64
	TotalBidQty   int64
	ExpectedPrice int64

	trID string
}

func (d *Depth) InstrumentCode() string { return d.Code }
func (d *Depth) TransactionID() string  { return d.trID }

// MarshalJSON flattens the price levels into the provider's ASKP1..ASKP10
// style keys so the downstream payload schema matches the raw feed.
func (d *Depth) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, 4*10+5)
	m["MKSC_SHRN_ISCD"] = d.Code
	m["BSOP_HOUR"] = d.Hour
	for i := range 10 {
		m[fmt.Sprintf("ASKP%d", i+1)] = d.AskPrices[i]
		m[fmt.Sprintf("BIDP%d", i+1)] = d.BidPrices[i]
		m[fmt.Sprintf("ASKP_RSQN%d", i+1)] = d.AskQuantities[i]
		m[fmt.Sprintf("BIDP_RSQN%d", i+1)] = d.BidQuantities[i]
	}
	m["TOTAL_ASKP_RSQN"] = d.TotalAskQty
	m["TOTAL_BIDP_RSQN"] = d.TotalBidQty
	m["ANTC_CNPR"] = d.ExpectedPrice
	return json.Marshal(m)
}

// Data frame layouts, by caret-separated field index. The provider sends
// wider frames than listed here; only the leading fields are consumed.
const (
	tickFieldCount = 14

	tickFieldCode       = 0
	tickFieldHour       = 1
	tickFieldPrice      = 2
	tickFieldChangeSign = 3
	tickFieldChange     = 4
	tickFieldChangeRate = 5
	tickFieldOpen       = 7
	tickFieldHigh       = 8
	tickFieldLow        = 9
	tickFieldAsk        = 10
	tickFieldBid        = 11
	tickFieldVolume     = 12
	tickFieldAccVolume  = 13

	depthFieldCount = 48

	depthFieldCode     = 0
	depthFieldHour     = 1
	depthFieldAskBase  = 3
	depthFieldBidBase  = 13
	depthFieldAskQty   = 23
	depthFieldBidQty   = 33
	depthFieldTotalAsk = 43
	depthFieldTotalBid = 44
	depthFieldExpected = 47
)

// ParseFrame decodes one inbound data frame. Control frames, unknown
// transaction ids and frames with fewer than four pipe segments are not
// an error; they decode to nil. A recognized transaction id with a broken
// body is a decode error the caller should log and drop.
func ParseFrame(raw string) (Record, error) {
	if strings.HasPrefix(raw, "{") {
		return nil, nil
	}
	parts := strings.Split(raw, "|")
	if len(parts) < 4 {
		return nil, nil
	}
	trID := parts[1]
	fields := strings.Split(parts[3], "^")
	switch trID {
	case TrIDTrade:
		return parseTick(fields)
	case TrIDOrderBook, TrIDOrderBookELW:
		return parseDepth(trID, fields)
	default:
		return nil, nil
	}
}

func parseTick(fields []string) (*Tick, error) {
	if len(fields) < tickFieldCount {
		return nil, fmt.Errorf("tick frame has %d fields, need %d", len(fields), tickFieldCount)
	}
	t := &Tick{
		Code:       fields[tickFieldCode],
		TradeHour:  fields[tickFieldHour],
		ChangeSign: fields[tickFieldChangeSign],
	}
	var err error
	for _, f := range []struct {
		dst *int64
		idx int
	}{
		{&t.Price, tickFieldPrice},
		{&t.Change, tickFieldChange},
		{&t.Open, tickFieldOpen},
		{&t.High, tickFieldHigh},
		{&t.Low, tickFieldLow},
		{&t.AskPrice, tickFieldAsk},
		{&t.BidPrice, tickFieldBid},
		{&t.TradeVolume, tickFieldVolume},
		{&t.AccVolume, tickFieldAccVolume},
	} {
		if *f.dst, err = strconv.ParseInt(fields[f.idx], 10, 64); err != nil {
			return nil, fmt.Errorf("tick field %d: %w", f.idx, err)
		}
	}
	if t.ChangeRate, err = strconv.ParseFloat(fields[tickFieldChangeRate], 64); err != nil {
		return nil, fmt.Errorf("tick field %d: %w", tickFieldChangeRate, err)
	}
	return t, nil
}

func parseDepth(trID string, fields []string) (*Depth, error) {
	if len(fields) < depthFieldCount {
		return nil, fmt.Errorf("depth frame has %d fields, need %d", len(fields), depthFieldCount)
	}
	d := &Depth{
		Code: fields[depthFieldCode],
		Hour: fields[depthFieldHour],
		trID: trID,
	}
	var err error
	for i := range 10 {
		if d.AskPrices[i], err = strconv.ParseInt(fields[depthFieldAskBase+i], 10, 64); err != nil {
			return nil, fmt.Errorf("depth ask price %d: %w", i+1, err)
		}
		if d.BidPrices[i], err = strconv.ParseInt(fields[depthFieldBidBase+i], 10, 64); err != nil {
			return nil, fmt.Errorf("depth bid price %d: %w", i+1, err)
		}
		if d.AskQuantities[i], err = strconv.ParseInt(fields[depthFieldAskQty+i], 10, 64); err != nil {
			return nil, fmt.Errorf("depth ask qty %d: %w", i+1, err)
		}
		if d.BidQuantities[i], err = strconv.ParseInt(fields[depthFieldBidQty+i], 10, 64); err != nil {
			return nil, fmt.Errorf("depth bid qty %d: %w", i+1, err)
		}
	}
	if d.TotalAskQty, err = strconv.ParseInt(fields[depthFieldTotalAsk], 10, 64); err != nil {
		return nil, fmt.Errorf("depth total ask qty: %w", err)
	}
	if d.TotalBidQty, err = strconv.ParseInt(fields[depthFieldTotalBid], 10, 64); err != nil {
		return nil, fmt.Errorf("depth total bid qty: %w", err)
	}
	if d.ExpectedPrice, err = strconv.ParseInt(fields[depthFieldExpected], 10, 64); err != nil {
		return nil, fmt.Errorf("depth expected price: %w", err)
	}
	return d, nil
}

type controlFrame struct {
	Header struct {
		TrID string `json:"tr_id"`
	} `json:"header"`
}

// IsPing reports whether raw is the provider's PINGPONG control frame.
// The reply must echo the raw frame unchanged.
func IsPing(raw string) bool {
	if !strings.HasPrefix(raw, "{") {
		return false
	}
	var ctrl controlFrame
	if err := json.Unmarshal([]byte(raw), &ctrl); err != nil {
		return false
	}
	return ctrl.Header.TrID == "PINGPONG"
}

type subscriptionHeader struct {
	ApprovalKey string `json:"approval_key"`
	CustType    string `json:"custtype"`
	TrType      string `json:"tr_type"`
	ContentType string `json:"content-type"`
}

type subscriptionInput struct {
	TrID  string `json:"tr_id"`
	TrKey string `json:"tr_key"`
}

type subscriptionBody struct {
	Input subscriptionInput `json:"input"`
}

type subscriptionFrame struct {
	Header subscriptionHeader `json:"header"`
	Body   subscriptionBody   `json:"body"`
}

// BuildSubscriptionFrame builds the outbound registration envelope for one
// transaction id and instrument code.
func BuildSubscriptionFrame(approvalKey, trID, code string) ([]byte, error) {
	return json.Marshal(subscriptionFrame{
		Header: subscriptionHeader{
			ApprovalKey: approvalKey,
			CustType:    "P",
			TrType:      "1",
			ContentType: "utf-8",
		},
		Body: subscriptionBody{
			Input: subscriptionInput{TrID: trID, TrKey: code},
		},
	})
}

// IsELW classifies warrant-like codes, which subscribe to a different
// order-book transaction id. Six all-digit codes and codes containing
// Hangul are never ELW; any letter, including the W warrant suffix, is.
func IsELW(code string) bool {
	allDigit := true
	for _, r := range code {
		if r >= unicode.MaxASCII && unicode.Is(unicode.Hangul, r) {
			return false
		}
		if !unicode.IsDigit(r) {
			allDigit = false
		}
	}
	if allDigit && len(code) == 6 {
		return false
	}
	for _, r := range code {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
}

// OrderBookTrID picks the order-book transaction id for a code.
func OrderBookTrID(code string) string {
	if IsELW(code) {
		return TrIDOrderBookELW
	}
	return TrIDOrderBook
}

// NormalizeCode validates and canonicalizes an instrument code before it
// is used as a topic key: upper-cased, ASCII alphanumeric only, bounded
// length, truncated at the first caret.
func NormalizeCode(code string) (string, error) {
	code, _, _ = strings.Cut(code, "^")
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return "", fmt.Errorf("empty instrument code")
	}
	if len(code) > maxCodeLength {
		return "", fmt.Errorf("instrument code %q exceeds %d characters", code, maxCodeLength)
	}
	for _, r := range code {
		if r >= '0' && r <= '9' || r >= 'A' && r <= 'Z' {
			continue
		}
		return "", fmt.Errorf("instrument code %q contains invalid character %q", code, r)
	}
	return code, nil
}
