package core

import "time"

const (
	// RootDirPerm is used when the server creates the root directory.
	// 0 (special bit - ignored), 7 (rwx - owner), 5 (r-x - user group), 5 (r-x - others)
	RootDirPerm = 0755

	// MetricsShutdownTimeout bounds how long Stop waits for metrics scrapes.
	MetricsShutdownTimeout = 5 * time.Second

	// Metric label used for request codes outside CREATE..DELETE.
	unknownCommandLabel = "unknown"
)
