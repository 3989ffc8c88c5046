package simulator

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Params is the fixed parameter table driving the simulation. Probabilities are
// per flow; whatever mass is left over in a categorical draw is the healthy case.
type Params struct {
	Flows       int       `yaml:"flows"`
	WindowStart time.Time `yaml:"windowStart"`
	WindowEnd   time.Time `yaml:"windowEnd"`
	City        string    `yaml:"city"`
	IDocType    string    `yaml:"idocType"`

	Transport TransportParams `yaml:"transport"`
	Business  BusinessParams  `yaml:"business"`

	SKUs             []string  `yaml:"skus"`
	Plants           []string  `yaml:"plants"`
	Schemas          []string  `yaml:"schemas"`
	SchemaWeights    []float64 `yaml:"schemaWeights"`
	ItemCountWeights []float64 `yaml:"itemCountWeights"`
	UoMs             []string  `yaml:"uoms"`
	UoMProbability   float64   `yaml:"uomProbability"`
	SLADueSeconds    []int     `yaml:"slaDueSeconds"`
	MaxQtyRequested  int       `yaml:"maxQtyRequested"`
}

// TransportParams holds the transport failure distribution.
type TransportParams struct {
	SchemaInvalid  float64 `yaml:"schemaInvalid"`
	MappingError   float64 `yaml:"mappingError"`
	FirewallDrop   float64 `yaml:"firewallDrop"`
	TLSExpired     float64 `yaml:"tlsExpired"`
	Other          float64 `yaml:"other"`
	GatewayTimeout float64 `yaml:"gatewayTimeout"`
	FalseSuccess   float64 `yaml:"falseSuccess"`
}

// BusinessParams holds the business outcome distribution, conditional on transport success.
type BusinessParams struct {
	NoResponse  float64 `yaml:"noResponse"`
	UoMMismatch float64 `yaml:"uomMismatch"`
	ConfirmedGT float64 `yaml:"confirmedGT"`
	Reject      float64 `yaml:"reject"`
	Partial     float64 `yaml:"partial"`
	Late        float64 `yaml:"late"`
}

// DefaultParams returns the reference parameter table: 10000 flows over the week of 9-16 December 2025.
func DefaultParams() Params {
	return Params{
		Flows:       10000,
		WindowStart: time.Date(2025, 12, 9, 0, 0, 0, 0, time.UTC),
		WindowEnd:   time.Date(2025, 12, 16, 23, 59, 59, 0, time.UTC),
		City:        "Dream-City",
		IDocType:    "ORDERS05",
		Transport: TransportParams{
			SchemaInvalid:  0.002,
			MappingError:   0.0015,
			FirewallDrop:   0.0008,
			TLSExpired:     0.0007,
			Other:          0.001,
			GatewayTimeout: 0.003,
			FalseSuccess:   0.0008,
		},
		Business: BusinessParams{
			NoResponse:  0.001,
			UoMMismatch: 0.0005,
			ConfirmedGT: 0.0005,
			Reject:      0.002,
			Partial:     0.006,
			Late:        0.004,
		},
		SKUs: []string{
			"PANTS-BLK-32", "PANTS-BLU-34", "PANTS-GRN-36", "PANTS-YLW-28", "PANTS-RED-30",
			"SHIRT-WHT-M", "SHIRT-BLK-L", "JACKET-NVY-50", "SOCKS-GRY-10", "BELT-BRN-40",
		},
		Plants:           []string{"DC01", "DC02", "DC03"},
		Schemas:          []string{"ORDERS_v7", "ORDERS_v6", "ORDERS_v8"},
		SchemaWeights:    []float64{0.75, 0.15, 0.10},
		ItemCountWeights: []float64{0.7, 0.25, 0.05},
		UoMs:             []string{"EA", "PCS"},
		UoMProbability:   0.05,
		SLADueSeconds:    []int{60, 120, 180},
		MaxQtyRequested:  12,
	}
}

// LoadParams overlays a YAML parameter file on the defaults. An empty path returns the defaults.
func LoadParams(path string) (Params, error) {
	params := DefaultParams()
	if path == "" {
		return params, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Params{}, fmt.Errorf("read simulator params: %w", err)
	}
	if err := yaml.Unmarshal(data, &params); err != nil {
		return Params{}, fmt.Errorf("parse simulator params: %w", err)
	}
	if err := params.Validate(); err != nil {
		return Params{}, err
	}
	return params, nil
}

// Validate rejects tables the generator cannot draw from.
func (p Params) Validate() error {
	switch {
	case p.Flows < 0:
		return errors.New("flows must not be negative")
	case !p.WindowEnd.After(p.WindowStart.Add(sendWindowMargin)):
		return errors.New("simulation window is too short")
	case len(p.SKUs) == 0, len(p.Plants) == 0, len(p.Schemas) == 0, len(p.SLADueSeconds) == 0, len(p.UoMs) == 0:
		return errors.New("reference lists must not be empty")
	case len(p.SchemaWeights) != len(p.Schemas):
		return errors.New("schemaWeights must match schemas")
	case len(p.ItemCountWeights) == 0:
		return errors.New("itemCountWeights must not be empty")
	case p.MaxQtyRequested < 1:
		return errors.New("maxQtyRequested must be at least 1")
	}
	t := p.Transport
	if sum := t.SchemaInvalid + t.MappingError + t.FirewallDrop + t.TLSExpired + t.Other + t.GatewayTimeout; sum > 1 {
		return fmt.Errorf("transport failure probabilities sum to %.4f", sum)
	}
	b := p.Business
	if sum := b.NoResponse + b.UoMMismatch + b.ConfirmedGT + b.Reject + b.Partial; sum > 1 {
		return fmt.Errorf("business outcome probabilities sum to %.4f", sum)
	}
	return nil
}
