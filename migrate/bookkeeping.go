package migrate

const (
	bookkeepingMigrationsTable = "_pyre_migrations"
	bookkeepingSchemaTable     = "_pyre_schema"
)

// createMigrationsTableSQL creates the ledger of applied migration scripts:
// one row per script, keyed by its folder name, recording when it finished.
const createMigrationsTableSQL = `CREATE TABLE IF NOT EXISTS "_pyre_migrations" (
	"name" TEXT PRIMARY KEY,
	"sql" TEXT NOT NULL,
	"finished_at" INTEGER NOT NULL DEFAULT (unixepoch())
)`

// createSchemaTableSQL creates the snapshot history of the declared schema
// text as of each migration, so a later run can recover "the schema the
// database was last migrated against" without replaying every script.
const createSchemaTableSQL = `CREATE TABLE IF NOT EXISTS "_pyre_schema" (
	"id" INTEGER PRIMARY KEY AUTOINCREMENT,
	"schema" TEXT NOT NULL,
	"created_at" INTEGER NOT NULL DEFAULT (unixepoch())
)`

const insertMigrationSQL = `INSERT INTO "_pyre_migrations" ("name", "sql") VALUES (?, ?)`

const insertSchemaSnapshotSQL = `INSERT INTO "_pyre_schema" ("schema") VALUES (?)`

const listAppliedMigrationsSQL = `SELECT "name" FROM "_pyre_migrations" ORDER BY "name"`

const latestSchemaSnapshotSQL = `SELECT "schema" FROM "_pyre_schema" ORDER BY "id" DESC LIMIT 1`
