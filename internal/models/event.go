// internal/models/event.go
package models

// StartFileValidationEvent fans out one message per file after the listing
// transaction commits. FileKey is the object location in storage; the
// subject is chosen by FileType ("image" | "model").
type StartFileValidationEvent struct {
	ListingID string `json:"listing_id"`
	UserID    string `json:"user_id"`
	TraceID   string `json:"trace_id"`
	FileID    string `json:"file_id"`
	FileKey   string `json:"file_key"`
	FileType  string `json:"file_type"`
}

// ReIndexListingEvent is published on update so the indexing worker refreshes
// the search document.
type ReIndexListingEvent struct {
	ListingID string `json:"listing_id"`
	TraceID   string `json:"trace_id"`
}

// IndexListingEvent is what the indexing worker consumes. The validation
// pipeline publishes the initial one; the gateway publishes re-index events
// with the same payload shape.
type IndexListingEvent struct {
	ListingID string `json:"listing_id"`
}
