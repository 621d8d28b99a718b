package store

import "database/sql"

var SQLiteDSN = sqliteDSN

// SQLDB exposes the pool so tests can recycle connections
func (g *Gateway) SQLDB() *sql.DB {
	return g.db
}
