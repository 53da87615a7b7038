package collection

import "time"

// StatusForDueDate derives the status a collection takes when its due date is
// set to due. It is applied to PAID collections too, so rescheduling a paid
// collection reopens it.
func StatusForDueDate(due, now time.Time) Status {
	if due.Before(now) {
		return StatusOverdue
	}
	return StatusPending
}

// DueDateFor anchors a new collection's due date to the appointment start.
func DueDateFor(appointmentStart time.Time, dueAfter time.Duration) time.Time {
	return appointmentStart.Add(dueAfter)
}
