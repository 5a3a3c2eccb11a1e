package domain

import "context"

// CycleArchiver stores a copy of every cycle report in object storage.
type CycleArchiver interface {
	ArchiveCycle(ctx context.Context, report CycleReport) error
}
