package serialport

import (
	"fmt"
	"strings"
)

// Router dispatches "sim:" identifiers to a simulator and everything else to the hardware
// opener. Either side may be nil.
type Router struct {
	Hardware  Opener
	Simulator Opener
}

func (r *Router) Open(id string) (Port, error) {
	if strings.HasPrefix(id, simPrefix) {
		if r.Simulator == nil {
			return nil, errUnsupported(id)
		}
		return r.Simulator.Open(id)
	}
	if r.Hardware == nil {
		return nil, errUnsupported(id)
	}
	return r.Hardware.Open(id)
}

// List returns hardware ports first, then simulated ones.
func (r *Router) List() ([]string, error) {
	var out []string
	if r.Hardware != nil {
		ids, err := r.Hardware.List()
		if err != nil {
			return nil, err
		}
		out = append(out, ids...)
	}
	if r.Simulator != nil {
		ids, err := r.Simulator.List()
		if err != nil {
			return nil, err
		}
		out = append(out, ids...)
	}
	return out, nil
}

func errUnsupported(id string) error {
	return fmt.Errorf("%w: no opener for %q", ErrSourceUnavailable, id)
}
