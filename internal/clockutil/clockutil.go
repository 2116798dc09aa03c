// Package clockutil carries the virtualizable clock used throughout the
// coordinator. It is a thin re-export of github.com/juju/clock so that
// production code constructs clock.WallClock while tests inject
// clock/testclock.NewClock, exactly as the teacher does across its workers.
package clockutil

import "github.com/juju/clock"

// Clock is the coordinator's view of time: read-only now() plus the
// ability to arm a timer that fires at a deadline.
type Clock = clock.Clock

// WallClock is the production clock.
var WallClock = clock.WallClock
