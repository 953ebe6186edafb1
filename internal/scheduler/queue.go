package scheduler

import (
	"fmt"

	"github.com/vivbliss/catalogcrawl/internal/domain"
)

// PriorityRequestQueue holds not-yet-dispatched requests, deduplicated by
// fingerprint and segmented for priority-aware retrieval: one FIFO sequence
// for category discovery requests, one per directory for product requests
// (created lazily, in insertion order), and one for everything else.
//
// Like the tracker, the queue relies on the Scheduler's mutex for
// synchronization.
type PriorityRequestQueue struct {
	seen map[string]struct{}

	categoryRequests []domain.Request
	productRequests  map[string][]domain.Request
	otherRequests    []domain.Request

	// directoryOrder preserves the creation order of per-directory sequences
	// for the fallback scan in NextRequest.
	directoryOrder []string
}

// QueueStats holds pending request counts per segment.
type QueueStats struct {
	CategoryPending  int            `json:"category_pending"`
	ProductPending   map[string]int `json:"product_pending_by_directory"`
	OtherPending     int            `json:"other_pending"`
	TotalPending     int            `json:"total_pending"`
	FingerprintsSeen int            `json:"fingerprints_seen"`
}

// NewPriorityRequestQueue creates an empty queue.
func NewPriorityRequestQueue() *PriorityRequestQueue {
	return &PriorityRequestQueue{
		seen:            make(map[string]struct{}),
		productRequests: make(map[string][]domain.Request),
	}
}

// AddCategoryRequest appends a category discovery request. Returns false
// without mutation when the fingerprint was already seen.
func (q *PriorityRequestQueue) AddCategoryRequest(req domain.Request) (bool, error) {
	if accepted, err := q.admit(req); !accepted {
		return false, err
	}

	q.categoryRequests = append(q.categoryRequests, req)

	return true, nil
}

// AddProductRequest appends a product request to the directory's sequence,
// creating the sequence on first use. Same dedup contract as category requests.
func (q *PriorityRequestQueue) AddProductRequest(req domain.Request, directoryPath string) (bool, error) {
	if accepted, err := q.admit(req); !accepted {
		return false, err
	}

	if _, exists := q.productRequests[directoryPath]; !exists {
		q.directoryOrder = append(q.directoryOrder, directoryPath)
	}
	q.productRequests[directoryPath] = append(q.productRequests[directoryPath], req)

	return true, nil
}

// AddOtherRequest appends a request that is neither category nor product.
func (q *PriorityRequestQueue) AddOtherRequest(req domain.Request) (bool, error) {
	if accepted, err := q.admit(req); !accepted {
		return false, err
	}

	q.otherRequests = append(q.otherRequests, req)

	return true, nil
}

// admit records the fingerprint, rejecting duplicates.
func (q *PriorityRequestQueue) admit(req domain.Request) (bool, error) {
	if req.Fingerprint == "" {
		return false, fmt.Errorf("add request %q: %w", req.URL, ErrEmptyFingerprint)
	}

	if _, dup := q.seen[req.Fingerprint]; dup {
		return false, nil
	}
	q.seen[req.Fingerprint] = struct{}{}

	return true, nil
}

// NextRequest pops the next request to dispatch, resolved in strict order:
//
//  1. The priority directory's product sequence, when given and non-empty.
//     The pinned directory always wins over everything else.
//  2. The category discovery sequence, so the traversal frontier keeps
//     expanding while the pinned directory is being drained.
//  3. Other directories' product sequences, scanned in creation order and
//     skipping the priority directory.
//  4. The other-request sequence.
//
// ok is false when no request is pending.
func (q *PriorityRequestQueue) NextRequest(priorityDirectory string) (domain.Request, bool) {
	if priorityDirectory != "" {
		if req, ok := q.popProduct(priorityDirectory); ok {
			return req, true
		}
	}

	if len(q.categoryRequests) > 0 {
		req := q.categoryRequests[0]
		q.categoryRequests = q.categoryRequests[1:]

		return req, true
	}

	for _, dir := range q.directoryOrder {
		if dir == priorityDirectory {
			continue
		}
		if req, ok := q.popProduct(dir); ok {
			return req, true
		}
	}

	if len(q.otherRequests) > 0 {
		req := q.otherRequests[0]
		q.otherRequests = q.otherRequests[1:]

		return req, true
	}

	return domain.Request{}, false
}

func (q *PriorityRequestQueue) popProduct(directoryPath string) (domain.Request, bool) {
	seq := q.productRequests[directoryPath]
	if len(seq) == 0 {
		return domain.Request{}, false
	}

	req := seq[0]
	q.productRequests[directoryPath] = seq[1:]

	return req, true
}

// Len returns the total number of pending requests.
func (q *PriorityRequestQueue) Len() int {
	total := len(q.categoryRequests) + len(q.otherRequests)
	for _, seq := range q.productRequests {
		total += len(seq)
	}

	return total
}

// Stats returns pending counts per segment. Only directories with pending
// requests appear in ProductPending.
func (q *PriorityRequestQueue) Stats() QueueStats {
	stats := QueueStats{
		CategoryPending:  len(q.categoryRequests),
		ProductPending:   make(map[string]int),
		OtherPending:     len(q.otherRequests),
		FingerprintsSeen: len(q.seen),
	}

	for dir, seq := range q.productRequests {
		if len(seq) > 0 {
			stats.ProductPending[dir] = len(seq)
		}
	}

	stats.TotalPending = q.Len()

	return stats
}
