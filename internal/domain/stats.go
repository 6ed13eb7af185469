package domain

// Stats is a derived per-status count over a visible idea set.
type Stats struct {
	Total      int `json:"total"`
	Pending    int `json:"pending"`
	InProgress int `json:"in_progress"`
	Completed  int `json:"completed"`
}

// Add counts one idea with the given status.
func (s *Stats) Add(status IdeaStatus) {
	s.Total++
	switch status {
	case IdeaStatusPending:
		s.Pending++
	case IdeaStatusInProgress:
		s.InProgress++
	case IdeaStatusCompleted:
		s.Completed++
	}
}

// Tally counts a slice of ideas.
func Tally(ideas []Idea) Stats {
	var s Stats
	for i := range ideas {
		s.Add(ideas[i].Status)
	}
	return s
}
