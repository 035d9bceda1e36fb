package store

import "github.com/echobell/echobell/internal/models"

// DefaultRuleSet returns the rule tables every fresh database is seeded with.
// Pattern IDs are fixed so that seeding stays idempotent.
func DefaultRuleSet() models.RuleSet {
	return models.RuleSet{
		Intents: []models.IntentDefinition{
			{Name: models.IntentAuthorityUrgent, Description: "Police, fire or other authority needing a prompt answer"},
			{Name: models.IntentPackageDrop, Description: "Courier delivering or collecting a package"},
			{Name: models.IntentTechnicianVisit, Description: "Utility or service technician with an appointment"},
			{Name: models.IntentSalesSolicit, Description: "Door-to-door sales or solicitation"},
			{Name: models.IntentNeighborHelp, Description: "Neighbor asking for help or returning something"},
			{Name: models.IntentUnknown, Description: "Nothing recognizable was said"},
		},
		Entities: []models.EntityDefinition{
			{Name: "fedex", Tag: "carrier", IntentHint: models.IntentPackageDrop, Weight: 0.9, Enabled: true},
			{Name: "ups", Tag: "carrier", IntentHint: models.IntentPackageDrop, Weight: 0.9, Enabled: true},
			{Name: "usps", Tag: "carrier", IntentHint: models.IntentPackageDrop, Weight: 0.9, Enabled: true},
			{Name: "dhl", Tag: "carrier", IntentHint: models.IntentPackageDrop, Weight: 0.9, Enabled: true},
			{Name: "amazon", Tag: "carrier", IntentHint: models.IntentPackageDrop, Weight: 0.8, Enabled: true},
			{Name: "sheriff", Tag: "authority", IntentHint: models.IntentAuthorityUrgent, Weight: 1.0, Enabled: true},
			{Name: "fire_department", Tag: "authority", IntentHint: models.IntentAuthorityUrgent, Weight: 1.0, Enabled: true},
			{Name: "comcast", Tag: "utility", IntentHint: models.IntentTechnicianVisit, Weight: 0.8, Enabled: true},
			{Name: "xfinity", Tag: "utility", IntentHint: models.IntentTechnicianVisit, Weight: 0.8, Enabled: true},
			{Name: "att", Tag: "utility", IntentHint: models.IntentTechnicianVisit, Weight: 0.7, Enabled: true},
			{Name: "pge", Tag: "utility", IntentHint: models.IntentTechnicianVisit, Weight: 0.8, Enabled: true},
			{Name: "vivint", Tag: "security_vendor", IntentHint: models.IntentSalesSolicit, Weight: 0.7, Enabled: true},
			{Name: "adt", Tag: "security_vendor", Weight: 0.6, Enabled: true},
		},
		Patterns: []models.PatternRule{
			// authority
			{ID: 1, Pattern: "police", Intent: models.IntentAuthorityUrgent, Weight: 1.0, Enabled: true},
			{ID: 2, Pattern: "officer", Intent: models.IntentAuthorityUrgent, Weight: 0.9, Enabled: true},
			{ID: 3, Pattern: "sheriff", Entity: "sheriff", Weight: 1.0, Enabled: true},
			{ID: 4, Pattern: `\bdeputy\b`, IsRegex: true, Intent: models.IntentAuthorityUrgent, Weight: 0.8, Enabled: true},
			{ID: 5, Pattern: "warrant", Intent: models.IntentAuthorityUrgent, Weight: 0.7, Enabled: true},
			{ID: 6, Pattern: "emergency", Intent: models.IntentAuthorityUrgent, Weight: 0.9, Enabled: true},
			{ID: 7, Pattern: `fire\s+(department|dept)`, IsRegex: true, Entity: "fire_department", Weight: 1.0, Enabled: true},
			{ID: 8, Pattern: "evacuat", Intent: models.IntentAuthorityUrgent, Weight: 0.9, Enabled: true},

			// package
			{ID: 20, Pattern: "fedex", Entity: "fedex", Weight: 1.0, Enabled: true},
			{ID: 21, Pattern: `\bups\b`, IsRegex: true, Entity: "ups", Weight: 1.0, Enabled: true},
			{ID: 22, Pattern: "usps", Entity: "usps", Weight: 1.0, Enabled: true},
			{ID: 23, Pattern: `\bdhl\b`, IsRegex: true, Entity: "dhl", Weight: 1.0, Enabled: true},
			{ID: 24, Pattern: "amazon", Entity: "amazon", Weight: 1.0, Enabled: true},
			{ID: 25, Pattern: "package", Intent: models.IntentPackageDrop, Weight: 0.8, Enabled: true},
			{ID: 26, Pattern: "delivery", Intent: models.IntentPackageDrop, Weight: 0.7, Enabled: true},
			{ID: 27, Pattern: "parcel", Intent: models.IntentPackageDrop, Weight: 0.7, Enabled: true},
			{ID: 28, Pattern: `sign(ature)?\s+for`, IsRegex: true, Intent: models.IntentPackageDrop, Weight: 0.5, Enabled: true},

			// technician
			{ID: 40, Pattern: "technician", Intent: models.IntentTechnicianVisit, Weight: 0.9, Enabled: true},
			{ID: 41, Pattern: `\btech\b`, IsRegex: true, Intent: models.IntentTechnicianVisit, Weight: 0.5, Enabled: true},
			{ID: 42, Pattern: "repair", Intent: models.IntentTechnicianVisit, Weight: 0.7, Enabled: true},
			{ID: 43, Pattern: "appointment", Intent: models.IntentTechnicianVisit, Weight: 0.6, Enabled: true},
			{ID: 44, Pattern: "install", Intent: models.IntentTechnicianVisit, Weight: 0.6, Enabled: true},
			{ID: 45, Pattern: "services", Intent: models.IntentTechnicianVisit, Weight: 0.4, Enabled: true},
			{ID: 46, Pattern: "comcast", Entity: "comcast", Weight: 1.0, Enabled: true},
			{ID: 47, Pattern: "xfinity", Entity: "xfinity", Weight: 1.0, Enabled: true},
			{ID: 48, Pattern: `at&t|\batt\b`, IsRegex: true, Entity: "att", Weight: 1.0, Enabled: true},
			{ID: 49, Pattern: `pg&e|\bpge\b`, IsRegex: true, Entity: "pge", Weight: 1.0, Enabled: true},
			{ID: 50, Pattern: `\bmeter\b`, IsRegex: true, Intent: models.IntentTechnicianVisit, Weight: 0.5, Enabled: true},

			// sales
			{ID: 60, Pattern: "free", Intent: models.IntentSalesSolicit, Weight: 0.9, Enabled: true},
			{ID: 61, Pattern: "solar", Intent: models.IntentSalesSolicit, Weight: 0.9, Enabled: true},
			{ID: 62, Pattern: "estimate", Intent: models.IntentSalesSolicit, Weight: 0.7, Enabled: true},
			{ID: 63, Pattern: "offer", Intent: models.IntentSalesSolicit, Weight: 0.6, Enabled: true},
			{ID: 64, Pattern: "discount", Intent: models.IntentSalesSolicit, Weight: 0.6, Enabled: true},
			{ID: 65, Pattern: `\bdeals?\b`, IsRegex: true, Intent: models.IntentSalesSolicit, Weight: 0.5, Enabled: true},
			{ID: 66, Pattern: "survey", Intent: models.IntentSalesSolicit, Weight: 0.5, Enabled: true},
			{ID: 67, Pattern: "services", Intent: models.IntentSalesSolicit, Weight: 0.4, Enabled: true},
			{ID: 68, Pattern: "vivint", Entity: "vivint", Weight: 1.0, Enabled: true},
			{ID: 69, Pattern: `\badt\b`, IsRegex: true, Entity: "adt", Weight: 1.0, Enabled: true},

			// neighbor
			{ID: 80, Pattern: "neighbor", Intent: models.IntentNeighborHelp, Weight: 0.9, Enabled: true},
			{ID: 81, Pattern: "next door", Intent: models.IntentNeighborHelp, Weight: 0.7, Enabled: true},
			{ID: 82, Pattern: "borrow", Intent: models.IntentNeighborHelp, Weight: 0.7, Enabled: true},
			{ID: 83, Pattern: `lost\s+(my\s+)?(dog|cat)`, IsRegex: true, Intent: models.IntentNeighborHelp, Weight: 0.8, Enabled: true},
			{ID: 84, Pattern: "help", Intent: models.IntentNeighborHelp, Weight: 0.4, Enabled: true},
		},
		VisionMappings: append(
			defaultVisionMappings("yolov8n"),
			defaultVisionMappings("yolov11n")...,
		),
	}
}

func defaultVisionMappings(model string) []models.VisionClassMapping {
	pairs := [][2]string{
		{"person", models.ClassPerson},
		{"car", models.ClassVehicle},
		{"truck", models.ClassVehicle},
		{"bus", models.ClassVehicle},
		{"motorcycle", models.ClassVehicle},
		{"motorbike", models.ClassVehicle},
		{"bicycle", models.ClassVehicle},
		{"dog", models.ClassDog},
		{"box", models.ClassPackage},
		{"suitcase", models.ClassPackage},
		{"backpack", models.ClassPackage},
		{"handbag", models.ClassPackage},
		// Small detectors routinely label cardboard boxes as microwaves.
		{"microwave", models.ClassPackage},
	}
	out := make([]models.VisionClassMapping, 0, len(pairs)+1)
	for _, p := range pairs {
		out = append(out, models.VisionClassMapping{ModelName: model, RawClass: p[0], SemanticClass: p[1], Enabled: true})
	}
	// Too many false positives from doormats; kept for operators to opt in.
	out = append(out, models.VisionClassMapping{ModelName: model, RawClass: "book", SemanticClass: models.ClassPackage, Enabled: false})
	return out
}

// DefaultHousehold returns the household configuration every fresh database is seeded with.
func DefaultHousehold() models.Household {
	return models.Household{
		Settings: map[string]string{
			"assistant_name":       "Echo-Bell",
			"greeting":             "Hi, I'm Echo-Bell. I keep an eye on things here. How can I help?",
			"timezone":             "Local",
			"vision_default_model": "yolov8n",
			"telegram_token":       "",
		},
		Features: map[string]bool{
			"vision":          true,
			"ocr":             false,
			"asr":             true,
			"llm_fallback":    false,
			"notify_telegram": true,
		},
		Modes: []models.Mode{
			{Name: "HOME", Description: "Someone is home", Active: false},
			{Name: "AWAY", Description: "Nobody is home", Active: false},
			{Name: "WORKING", Description: "Home but busy; screen visitors", Active: true},
			{Name: "NIGHT", Description: "Household asleep", Active: false},
		},
		QuietHours: []models.QuietHours{
			{ID: 1, Start: "22:00", End: "07:00", Days: "*", Enabled: true},
		},
		Notifiers: []models.Notifier{
			{ID: 1, Kind: "telegram", Target: "primary", Priority: models.PriorityHigh, Enabled: true},
			{ID: 2, Kind: "telegram", Target: "household", Priority: models.PriorityNormal, Enabled: true},
			{ID: 3, Kind: "webhook", Target: "http://localhost:8123/api/webhook/doorbell", Priority: models.PriorityLow, Enabled: false},
		},
	}
}
