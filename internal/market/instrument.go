package market

// InstrumentSpec describes the contract arithmetic of one futures
// instrument: the minimum price increment and its dollar value.
type InstrumentSpec struct {
	Symbol    string  `json:"symbol"`
	TickSize  float64 `json:"tick_size"`
	TickValue float64 `json:"tick_value"`
}

// DefaultInstrumentSpecs covers the CME micro and e-mini index futures
// the system trades by default.
func DefaultInstrumentSpecs() map[string]InstrumentSpec {
	return map[string]InstrumentSpec{
		"MNQ": {Symbol: "MNQ", TickSize: 0.25, TickValue: 0.5},
		"NQ":  {Symbol: "NQ", TickSize: 0.25, TickValue: 5.0},
		"MES": {Symbol: "MES", TickSize: 0.25, TickValue: 1.25},
		"ES":  {Symbol: "ES", TickSize: 0.25, TickValue: 12.5},
	}
}
