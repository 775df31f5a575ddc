package analysis

// Options gates the optional steps of an analysis run. Quality scoring and
// correlation discovery always run.
type Options struct {
	DetectAnomalies bool `json:"detect_anomalies"`
	Forecast        bool `json:"forecast"`
	SuggestKpis     bool `json:"suggest_kpis"`
}

// AllOptions enables every optional analysis step
func AllOptions() Options {
	return Options{
		DetectAnomalies: true,
		Forecast:        true,
		SuggestKpis:     true,
	}
}
