package repo

const (
	tableNameBasicInstrument string = "basic_instrument"
)
