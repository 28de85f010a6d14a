package jobs

import "encoding/json"

// MockResult is the canned analysis returned in mock mode.
func MockResult() Result {
	return Result{
		Material:         "PET plastic",
		CO2Kg:            123.45,
		CircularityScore: 67,
		RecycledPercent:  30,
		Recommendations: []string{
			"Increase recycled content to at least 50%",
			"Switch to rail freight for long-haul transport",
			"Design for disassembly to simplify end-of-life sorting",
		},
		RawJSON: json.RawMessage(`{"source":"mock"}`),
	}
}
