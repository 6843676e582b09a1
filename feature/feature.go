package feature

import "errors"

// DBFileName is the name of the SQLite database inside the project directory.
const DBFileName = "features.db"

// LegacyListFile is the pre-database JSON feature list. Its presence counts
// as "project has features" so the initializer is not re-run.
const LegacyListFile = "feature_list.json"

// MaxListLimit caps list page sizes to keep agent tool output small.
const MaxListLimit = 5

var (
	// ErrNotFound is returned when a feature ID does not exist.
	ErrNotFound = errors.New("feature not found")

	// ErrNoPending is returned by Next when every feature passes.
	ErrNoPending = errors.New("all features are passing")

	// ErrAlreadyPassing is returned when skipping a passing feature.
	ErrAlreadyPassing = errors.New("cannot skip a feature that is already passing")
)

// Feature is one unit of work for the coding agent.
type Feature struct {
	ID          int64    `json:"id"`
	Priority    int64    `json:"priority"`
	Category    string   `json:"category"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Steps       []string `json:"steps"`
	Passes      bool     `json:"passes"`
}

// Draft is the caller-supplied part of a feature; IDs and priorities are
// assigned by the store.
type Draft struct {
	Category    string   `json:"category"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Steps       []string `json:"steps"`
}

// Validate checks that a draft has the required fields.
func (d Draft) Validate() error {
	switch {
	case d.Category == "":
		return errors.New("category is required")
	case d.Name == "":
		return errors.New("name is required")
	case d.Description == "":
		return errors.New("description is required")
	case len(d.Steps) == 0:
		return errors.New("at least one step is required")
	}
	return nil
}

// Stats summarizes feature completion.
type Stats struct {
	Passing    int     `json:"passing"`
	Total      int     `json:"total"`
	Percentage float64 `json:"percentage"`
}

// Summary is the minimal feature view used by progress tracking.
type Summary struct {
	ID       int64  `json:"id"`
	Category string `json:"category"`
	Name     string `json:"name"`
}

// ListFilter narrows List results.
type ListFilter struct {
	Limit    int
	Offset   int
	Passes   *bool
	Category string
	Random   bool
}
