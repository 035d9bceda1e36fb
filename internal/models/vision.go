package models

// VisionClassMapping maps a detector's raw output label to a semantic label for one model.
type VisionClassMapping struct {
	ModelName     string `json:"model_name"`
	RawClass      string `json:"raw_class"`
	SemanticClass string `json:"semantic_class"`
	Enabled       bool   `json:"enabled"`
}

// Semantic classes the rest of the pipeline understands.
const (
	ClassPerson  = "person"
	ClassPackage = "package"
	ClassVehicle = "vehicle"
	ClassDog     = "dog"
)

// Detection is one detector output before mapping.
type Detection struct {
	Class      string  `json:"class"`
	Confidence float64 `json:"confidence"`
}

// Scene holds coarse flags derived from the mapped detections of one frame.
type Scene struct {
	Labels         []string `json:"labels"`
	PersonPresent  bool     `json:"person_present"`
	PackageBox     bool     `json:"package_box"`
	VehiclePresent bool     `json:"vehicle_present"`
	DogPresent     bool     `json:"dog_present"`
	// Uniform is "police", "fire" or empty.
	Uniform string `json:"uniform,omitempty"`
}
