package models

import "fmt"

// BugSort names an ordering of a project's bug list.
type BugSort string

const (
	SortNewest     BugSort = "newest"
	SortOldest     BugSort = "oldest"
	SortAZ         BugSort = "a-z"
	SortZA         BugSort = "z-a"
	SortClosed     BugSort = "closed"
	SortReopened   BugSort = "reopened"
	SortUpdated    BugSort = "updated"
	SortMostNotes  BugSort = "most-notes"
	SortLeastNotes BugSort = "least-notes"
)

const notesCount = "(SELECT COUNT(*) FROM notes WHERE notes.bug_id = bugs.id)"

var sortOrders = map[BugSort]string{
	SortNewest:     "bugs.created_at DESC",
	SortOldest:     "bugs.created_at ASC",
	SortAZ:         "bugs.title ASC",
	SortZA:         "bugs.title DESC",
	SortClosed:     "bugs.closed_at DESC NULLS LAST",
	SortReopened:   "bugs.reopened_at DESC NULLS LAST",
	SortUpdated:    "bugs.updated_at DESC NULLS LAST",
	SortMostNotes:  notesCount + " DESC",
	SortLeastNotes: notesCount + " ASC",
}

// ParseBugSort maps a query value to a BugSort, defaulting to newest.
func ParseBugSort(s string) (BugSort, error) {
	if s == "" {
		return SortNewest, nil
	}
	if _, ok := sortOrders[BugSort(s)]; !ok {
		return "", &ValidationError{Field: "sort", Message: fmt.Sprintf("Unknown sort value %q.", s)}
	}
	return BugSort(s), nil
}

// OrderClause returns the SQL ORDER BY expression for the sort.
func (s BugSort) OrderClause() string {
	if o, ok := sortOrders[s]; ok {
		return o + ", bugs.id ASC"
	}
	return sortOrders[SortNewest] + ", bugs.id ASC"
}
