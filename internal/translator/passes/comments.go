package passes

import (
	"fmt"
	"strings"
)

// StripComments removes `--` line comments and `/* ... */` block comments
// (including nested ones) while leaving single-quoted strings and
// dollar-quoted strings (`$tag$...$tag$`) untouched, per spec.md §4.4 pass 1.
// Returns an error if nothing but whitespace remains.
func StripComments(sql string) (string, error) {
	var b strings.Builder
	b.Grow(len(sql))

	i := 0
	n := len(sql)
	blockDepth := 0

	for i < n {
		ch := sql[i]

		if blockDepth > 0 {
			if ch == '/' && i+1 < n && sql[i+1] == '*' {
				blockDepth++
				i += 2
				continue
			}
			if ch == '*' && i+1 < n && sql[i+1] == '/' {
				blockDepth--
				i += 2
				continue
			}
			i++
			continue
		}

		if ch == '-' && i+1 < n && sql[i+1] == '-' {
			for i < n && sql[i] != '\n' {
				i++
			}
			continue
		}

		if ch == '/' && i+1 < n && sql[i+1] == '*' {
			blockDepth = 1
			i += 2
			continue
		}

		if ch == '\'' {
			b.WriteByte(ch)
			i++
			for i < n {
				b.WriteByte(sql[i])
				if sql[i] == '\'' {
					i++
					if i < n && sql[i] == '\'' {
						b.WriteByte(sql[i])
						i++
						continue
					}
					break
				}
				i++
			}
			continue
		}

		if tag, ok := dollarTagAt(sql, i); ok {
			end := strings.Index(sql[i+len(tag):], tag)
			if end < 0 {
				b.WriteString(sql[i:])
				i = n
				continue
			}
			full := sql[i : i+len(tag)+end+len(tag)]
			b.WriteString(full)
			i += len(full)
			continue
		}

		b.WriteByte(ch)
		i++
	}

	out := strings.TrimSpace(b.String())
	if out == "" {
		return "", fmt.Errorf("pgsqlite: empty query")
	}
	return out, nil
}

// dollarTagAt reports whether sql[i:] begins a dollar-quote tag like `$$` or
// `$tag$`, returning the full tag text.
func dollarTagAt(sql string, i int) (string, bool) {
	if sql[i] != '$' {
		return "", false
	}
	j := i + 1
	for j < len(sql) && isTagByte(sql[j]) {
		j++
	}
	if j >= len(sql) || sql[j] != '$' {
		return "", false
	}
	return sql[i : j+1], true
}

func isTagByte(b byte) bool {
	return b == '_' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}
