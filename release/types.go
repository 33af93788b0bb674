package release

import "fmt"

// URLData holds the values available to a download URL template.
type URLData struct {
	Tag    string
	Suffix string
}

// StatusError is returned when the release server answers with anything
// other than 200 OK.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("download of %s returned status %d", e.URL, e.StatusCode)
}
