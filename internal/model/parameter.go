package model

import "fmt"

// ParameterIndex identifies one uncertain model parameter: the exchange from the
// input (row) node into the output (column) node of the dependency graph.
type ParameterIndex struct {
	Row int64 `json:"row"`
	Col int64 `json:"col"`
}

func (p ParameterIndex) String() string {
	return fmt.Sprintf("(%d, %d)", p.Row, p.Col)
}

// Provenance is the human-readable description of a parameter resolved from the model graph.
type Provenance struct {
	InputName       string  `json:"input_name"`
	InputLocation   string  `json:"input_location"`
	InputCategories string  `json:"input_categories"`
	OutputName      string  `json:"output_name"`
	OutputLocation  string  `json:"output_location"`
	ExchangeType    string  `json:"exchange_type"`
	ExchangeAmount  float64 `json:"exchange_amount"`
	ExchangeUnit    string  `json:"exchange_unit"`
}
