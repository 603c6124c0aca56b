// Package ingest holds the per-document outcome types of an ingestion run.
package ingest

// DocStatus is the processing outcome of a single document.
type DocStatus string

// Document status values.
const (
	StatusOK    DocStatus = "ok"
	StatusError DocStatus = "error"
)

// Result is the outcome of ingesting one document.
type Result struct {
	docID  string
	chunks int
	status DocStatus
	err    error
}

// NewOK creates a successful document result.
func NewOK(docID string, chunks int) Result {
	return Result{docID: docID, chunks: chunks, status: StatusOK}
}

// NewError creates a failed document result.
func NewError(docID string, err error) Result {
	return Result{docID: docID, status: StatusError, err: err}
}

// DocID returns the document identifier.
func (r Result) DocID() string { return r.docID }

// Chunks returns the number of chunks written for the document.
func (r Result) Chunks() int { return r.chunks }

// Status returns the processing outcome.
func (r Result) Status() DocStatus { return r.status }

// Err returns the error, if any.
func (r Result) Err() error { return r.err }

// Report aggregates the outcomes of one ingestion run. Failures are collected
// per document; one unreadable file never aborts the batch.
type Report struct {
	results []Result
}

// Add appends a document result.
func (r *Report) Add(res Result) { r.results = append(r.results, res) }

// Results returns all document results in completion order.
func (r *Report) Results() []Result { return r.results }

// Documents returns the total number of documents processed.
func (r *Report) Documents() int { return len(r.results) }

// Chunks returns the total number of chunks written.
func (r *Report) Chunks() int {
	var n int
	for _, res := range r.results {
		n += res.chunks
	}
	return n
}

// Failed returns the number of documents that failed.
func (r *Report) Failed() int {
	var n int
	for _, res := range r.results {
		if res.status == StatusError {
			n++
		}
	}
	return n
}
