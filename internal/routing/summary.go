package routing

// Summary counts what one pass did.
type Summary struct {
	Scanned    int
	Assigned   int
	Expired    int
	Reassigned int
	Unassigned int
	Skipped    int
	Failed     int
}

// Fields renders the summary for structured logs.
func (s Summary) Fields() map[string]any {
	return map[string]any{
		"scanned":    s.Scanned,
		"assigned":   s.Assigned,
		"expired":    s.Expired,
		"reassigned": s.Reassigned,
		"unassigned": s.Unassigned,
		"skipped":    s.Skipped,
		"failed":     s.Failed,
	}
}
