package httpx

import (
	"errors"
	"net/http"
)

// Mapping pairs a sentinel error with the HTTP status it should produce.
type Mapping struct {
	Err    error
	Status int
	Title  string
}

// StatusMapper translates domain errors into RFC7807 responses. Handlers
// build one per package listing their sentinel errors.
type StatusMapper []Mapping

// Respond writes the problem response for err. Unmapped errors become an
// opaque 500 so internals never leak to clients.
func (m StatusMapper) Respond(w http.ResponseWriter, err error) {
	for _, entry := range m {
		if errors.Is(err, entry.Err) {
			Problem(w, entry.Status, entry.Title, err.Error())
			return
		}
	}
	Problem(w, http.StatusInternalServerError, "Internal Error", "")
}
