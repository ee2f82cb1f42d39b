// Command pgsqlite serves the PostgreSQL wire protocol over an embedded
// SQLite database (spec.md §1-2). It follows the teacher's
// cmd/packagemigrator split: a package main that only calls Execute, and a
// cobra root command living alongside it that wires flags to viper
// environment variables.
package main

import "os"

func main() {
	Execute(os.Args[1:]...)
}
