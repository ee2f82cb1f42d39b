package translator

import (
	"testing"

	qt "github.com/frankban/quicktest"
)

func TestIsUltraFastPath(t *testing.T) {
	c := qt.New(t)

	cases := []struct {
		name string
		sql  string
		want bool
	}{
		{"simple select", "SELECT id, name FROM users WHERE id = $1", true},
		{"simple insert", "INSERT INTO users (id, name) VALUES ($1, $2)", true},
		{"simple update", "UPDATE users SET name = $1 WHERE id = $2", true},
		{"simple delete", "DELETE FROM users WHERE id = $1", true},
		{"cast rejected", "SELECT id::text FROM users", false},
		{"join rejected", "SELECT u.id FROM users u JOIN orders o ON o.user_id = u.id", false},
		{"returning rejected", "INSERT INTO users (id) VALUES ($1) RETURNING id", false},
		{"cte rejected", "WITH t AS (SELECT 1) SELECT * FROM t", false},
		{"array literal rejected", "INSERT INTO users (tags) VALUES (ARRAY[1,2])", false},
		{"containment op rejected", "SELECT * FROM docs WHERE data @> '{}'", false},
		{"now rejected", "SELECT NOW()", false},
		{"ddl not matched", "CREATE TABLE t (id INTEGER)", false},
	}

	for _, tc := range cases {
		c.Run(tc.name, func(c *qt.C) {
			c.Assert(isUltraFastPath(tc.sql), qt.Equals, tc.want)
		})
	}
}
