// Package refresh implements the list refresh callback: the async job
// handler fired by the scheduler (or invoked ad hoc) that consumes quota
// and fetches fresh metrics for a list's queries.
package refresh

import "encoding/json"

// HandlerName is the async handler name refresh jobs are routed to
const HandlerName = "list.refresh"

// Payload carries the arguments bound to a scheduled refresh job
type Payload struct {
	AccountID string `json:"account_id"`
	ListID    int64  `json:"list_id"`
}

// MarshalPayload renders a refresh payload for job binding
func MarshalPayload(accountID string, listID int64) (json.RawMessage, error) {
	return json.Marshal(Payload{AccountID: accountID, ListID: listID})
}
