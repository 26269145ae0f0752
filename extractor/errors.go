package extractor

import "fmt"

// FetchError reports a failure to retrieve usable HTML: transport errors,
// non-2xx statuses, or a response too short to be a rendered page.
type FetchError struct {
	URL     string
	Status  int
	Timeout bool
	Err     error
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("fetch %s: status %d", e.URL, e.Status)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ParseError reports a page that was fetched but yielded no readable article
// text, typically because it requires script execution or blocks automated
// access.
type ParseError struct {
	URL    string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %s", e.URL, e.Reason)
}
