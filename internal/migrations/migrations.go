// Package migrations схема базы, встроенная в бинарник
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
