package domain

// Criterion is one weighted scoring dimension of the final rubric.
type Criterion struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Weight float64 `json:"weight"`
	Prompt string  `json:"prompt"`
}

// Overrides maps criterion id to an operator-supplied fixed score.
type Overrides map[string]float64

func (o Overrides) Lookup(id string) (float64, bool) {
	if o == nil {
		return 0, false
	}
	v, ok := o[id]
	return v, ok
}
