// Package pms decodes the binary frames emitted by Plantower PMS-family
// laser-scattering particulate sensors.
package pms

import "fmt"

// Sample is one decoded measurement. Concentrations are the
// environmental-compensated values in µg/m³; particle counts are per 0.1 L
// of air above the given diameter.
//
// Sample is a plain value: copies never alias each other.
type Sample struct {
	PM1_0 uint16 `json:"pm_1_0"`
	PM2_5 uint16 `json:"pm_2_5"`
	PM10  uint16 `json:"pm_10"`

	Particles0_3um uint16 `json:"particles_0_3um"`
	Particles0_5um uint16 `json:"particles_0_5um"`
	Particles1_0um uint16 `json:"particles_1_0um"`
	Particles2_5um uint16 `json:"particles_2_5um"`
	Particles5_0um uint16 `json:"particles_5_0um"`
	Particles10um  uint16 `json:"particles_10um"`
}

// IsZero reports whether s is the default sample served before the first
// successful read.
func (s Sample) IsZero() bool {
	return s == Sample{}
}

func (s Sample) String() string {
	return fmt.Sprintf(
		"PM1.0=%d PM2.5=%d PM10=%d >0.3um=%d >0.5um=%d >1.0um=%d >2.5um=%d >5.0um=%d >10um=%d",
		s.PM1_0, s.PM2_5, s.PM10,
		s.Particles0_3um, s.Particles0_5um, s.Particles1_0um,
		s.Particles2_5um, s.Particles5_0um, s.Particles10um,
	)
}
