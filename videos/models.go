package videos

// Model describes the parameter constraints of one video generation model.
// The table is static configuration consumed by callers for pre-submission
// validation and cost estimates; the service itself does not enforce it.
type Model struct {
	Name          string
	RatePerSecond float64 // USD per generated second
	Sizes         []string
	Durations     []int // allowed clip lengths in seconds
}

// SupportedModels lists the known video models and their constraints.
var SupportedModels = []Model{
	{
		Name:          "sora-2",
		RatePerSecond: 0.10,
		Sizes:         []string{"720x1280", "1280x720"},
		Durations:     []int{4, 8, 12},
	},
	{
		Name:          "sora-2-pro",
		RatePerSecond: 0.30,
		Sizes:         []string{"720x1280", "1280x720", "1024x1792", "1792x1024"},
		Durations:     []int{4, 8, 12},
	},
}

// FindModel looks up a model by name.
func FindModel(name string) (Model, bool) {
	for _, m := range SupportedModels {
		if m.Name == name {
			return m, true
		}
	}
	return Model{}, false
}

// SupportsSize reports whether the model can render the given resolution.
func (m Model) SupportsSize(size string) bool {
	for _, s := range m.Sizes {
		if s == size {
			return true
		}
	}
	return false
}

// SupportsDuration reports whether the model accepts the clip length.
func (m Model) SupportsDuration(seconds int) bool {
	for _, d := range m.Durations {
		if d == seconds {
			return true
		}
	}
	return false
}

// EstimateCost returns the estimated charge in USD for a clip.
func (m Model) EstimateCost(seconds int) float64 {
	return m.RatePerSecond * float64(seconds)
}

// SupportsSize reports whether the named model can render the
// resolution. Models missing from the table are not constrained
// locally; the server remains the authority.
func SupportsSize(model, size string) bool {
	m, ok := FindModel(model)
	if !ok {
		return true
	}
	return m.SupportsSize(size)
}

// SupportsDuration reports whether the named model accepts the clip
// length. Models missing from the table are not constrained locally.
func SupportsDuration(model string, seconds int) bool {
	m, ok := FindModel(model)
	if !ok {
		return true
	}
	return m.SupportsDuration(seconds)
}

// EstimateCost estimates the charge in USD for a clip, reporting false
// for models missing from the table.
func EstimateCost(model string, seconds int) (float64, bool) {
	m, ok := FindModel(model)
	if !ok {
		return 0, false
	}
	return m.EstimateCost(seconds), true
}
