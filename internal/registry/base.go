package registry

// Shipped base registry. Index columns identify rows of a dataset; value
// columns hold measurements. Enum constraints that start empty are
// back-filled by scanning actual data during schema inference.

var baseIdxCols = []ColSchema{
	{Name: "region", Type: "string"},
	{Name: "technology", Type: "string", Constraints: &Constraints{Enum: []string{}}},
	{Name: "carrier", Type: "string", Constraints: &Constraints{Enum: []string{}}},
	{Name: "enduse", Type: "string", Constraints: &Constraints{Enum: []string{}}},
	{Name: "site", Type: "string"},
	{Name: "scenario", Type: "string"},
	{Name: "model", Type: "string"},
	{Name: "unit", Type: "string"},
	{Name: "year", Type: "year"},
	{Name: "timesteps", Type: "datetime"},
}

var baseCols = []ColSchema{
	{Name: "value", Type: "number"},
	{Name: "capacity_factor", Type: "number", Constraints: &Constraints{Minimum: f(0), Maximum: f(1)}},
	{Name: "energy_cap", Type: "number", Constraints: &Constraints{Minimum: f(0)}},
	{Name: "storage_cap", Type: "number", Constraints: &Constraints{Minimum: f(0)}},
	{Name: "flow_in", Type: "number"},
	{Name: "flow_out", Type: "number"},
	{Name: "cost", Type: "number"},
	{Name: "emission_prod", Type: "number"},
}

func f(v float64) *float64 { return &v }
