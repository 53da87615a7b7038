package collection

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAggregate(t *testing.T) {
	k := Aggregate([]StatusTotal{
		{Status: StatusPending, Count: 2, Total: 200},
		{Status: StatusOverdue, Count: 1, Total: 50},
		{Status: StatusPaid, Count: 2, Total: 400},
		{Status: "REFUNDED", Count: 9, Total: 900},
	})

	assert.Equal(t, Bucket{Count: 2, Total: 200}, k.Pending)
	assert.Equal(t, Bucket{Count: 1, Total: 50}, k.Overdue)
	assert.Equal(t, Bucket{Count: 2, Total: 400}, k.Paid)
}

func TestAggregateEmpty(t *testing.T) {
	assert.Equal(t, KPIs{}, Aggregate(nil))
}

func TestStatusForDueDate(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, StatusOverdue, StatusForDueDate(now.Add(-time.Second), now))
	assert.Equal(t, StatusPending, StatusForDueDate(now, now))
	assert.Equal(t, StatusPending, StatusForDueDate(now.Add(24*time.Hour), now))
}

func TestDueDateFor(t *testing.T) {
	start := time.Date(2025, 1, 10, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2025, 4, 10, 10, 0, 0, 0, time.UTC), DueDateFor(start, 90*24*time.Hour))
}
