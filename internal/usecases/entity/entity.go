// Package entity holds the domain types shared by usecases and repos.
package entity

const (
	ShortSlashTimeLayout string = "2006/01/02"
	LongTimeLayout       string = "2006-01-02 15:04:05"
)

const (
	MarketKOSPI  string = "KOSPI"
	MarketKOSDAQ string = "KOSDAQ"
	MarketELW    string = "ELW"
)

// Instrument is one listed code from the instrument master.
type Instrument struct {
	Code          string `json:"code"`
	Name          string `json:"name"`
	Market        string `json:"market"`
	LastClose     int64  `json:"last_close"`
	LastCloseDate string `json:"last_close_date"`
	UpdateDate    string `json:"update_date"`
}

// Notice is a broadcast message pushed to every connected stream client.
type Notice struct {
	Title   string `json:"title"`
	Message string `json:"message"`
	Time    string `json:"time"`
}
