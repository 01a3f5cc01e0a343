package contextkey

type contextKey string

const (
	// ContextKeyConnID carries the per-connection identifier assigned at upgrade time.
	ContextKeyConnID contextKey = "conn_id"
)
