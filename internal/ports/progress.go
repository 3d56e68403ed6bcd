package ports

// Progress is reported synchronously at fixed phase boundaries.
type Progress struct {
	Phase       string `json:"phase"`
	CurrentStep int    `json:"currentStep"`
	TotalSteps  int    `json:"totalSteps"`
	Percent     int    `json:"percent"`
	Message     string `json:"message"`
}

type ProgressFunc func(Progress)
