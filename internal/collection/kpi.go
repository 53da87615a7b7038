package collection

// Aggregate folds per-status aggregate rows into KPIs. Rows for the same
// status are summed; unknown statuses are ignored.
func Aggregate(rows []StatusTotal) KPIs {
	var k KPIs
	for _, r := range rows {
		var b *Bucket
		switch r.Status {
		case StatusPending:
			b = &k.Pending
		case StatusOverdue:
			b = &k.Overdue
		case StatusPaid:
			b = &k.Paid
		default:
			continue
		}
		b.Count += r.Count
		b.Total += r.Total
	}
	return k
}
