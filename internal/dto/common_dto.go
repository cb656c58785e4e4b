package dto

// Pagination captures offset/limit paging metadata for list responses. HasMore
// is true when another page exists under the same filter predicate.
type Pagination struct {
	Total   int64 `json:"total"`
	Limit   int   `json:"limit"`
	Offset  int   `json:"offset"`
	HasMore bool  `json:"has_more"`
}
