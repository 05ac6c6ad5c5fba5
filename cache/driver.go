package cache

// Pure-Go SQLite driver; no cgo needed.
import _ "modernc.org/sqlite"

// driverName is the database/sql driver registered by modernc.org/sqlite.
const driverName = "sqlite"
