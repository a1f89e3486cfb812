package db

// DB returns the DBTX backing the sqlc-generated Queries, for the few spots
// (batch position updates, integrity sweeps) that need raw SQL.
func (q *Queries) DB() DBTX {
	return q.db
}
