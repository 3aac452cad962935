package models

// All lists every persisted model, in dependency order, for sqlite auto-migration.
func All() []any {
	return []any{
		&Content{},
		&Season{},
		&Episode{},
		&VideoSource{},
		&ViewerSubscription{},
		&Rental{},
		&DeviceSession{},
		&CascadeJob{},
	}
}
