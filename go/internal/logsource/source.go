// Package logsource feeds raw combat log lines into the timer engine.
package logsource

import "context"

// Submitter accepts raw log lines, in order
type Submitter interface {
	Submit(ctx context.Context, line string) error
}
