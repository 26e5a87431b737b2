package domain

import "fmt"

// TickReport summarizes one tick.
type TickReport struct {
	Checked   int // entities whose presence was evaluated
	Started   int
	Completed int
	Failed    int // entities skipped due to fetch or processing failures
	Anomalies int
}

// Events is the number of logged events (sessions started plus sessions completed).
func (r TickReport) Events() int {
	return r.Started + r.Completed
}

func (r TickReport) String() string {
	return fmt.Sprintf("SUCCESS: Checked %d friends. %d new events logged.", r.Checked, r.Events())
}
