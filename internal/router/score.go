package router

import "github.com/forgehold/crucible/internal/manifest"

// Scoring weights. The risk penalty favors safer plugins when
// capability scores tie.
const (
	categoryWeight = 40.0
	tagWeight      = 10.0
	inputWeight    = 30.0
	outputWeight   = 20.0
	riskPenalty    = 10.0
)

// score rates one manifest against the requirements. Name matching is
// exact; fractions keep partially-covered interfaces in the running
// without letting them outrank full coverage.
func score(req TaskRequirements, m *manifest.Manifest) float64 {
	var s float64

	if req.Category != "" && req.Category == m.Category {
		s += categoryWeight
	}

	for _, tag := range req.Tags {
		if m.HasTag(tag) {
			s += tagWeight
		}
	}

	if len(m.Inputs) > 0 {
		covered := 0
		for _, p := range m.Inputs {
			if _, ok := req.Inputs[p.Name]; ok {
				covered++
			}
		}
		s += inputWeight * float64(covered) / float64(len(m.Inputs))
	}

	if len(req.ExpectedOutputs) > 0 {
		present := 0
		for _, name := range req.ExpectedOutputs {
			if _, ok := m.Output(name); ok {
				present++
			}
		}
		s += outputWeight * float64(present) / float64(len(req.ExpectedOutputs))
	}

	for _, p := range m.Permissions.Strings() {
		if manifest.HighRisk(p) {
			s -= riskPenalty
			break
		}
	}
	return s
}
