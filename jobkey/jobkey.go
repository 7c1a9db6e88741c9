// Package jobkey derives the key that distinguishes instances of the same
// job. Two launches with equal identifying parameters share a key and
// therefore a JobInstance.
package jobkey

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Parameter is one job launch parameter.
type Parameter struct {
	Value any
	// Identifying parameters take part in the key. Others are carried for
	// the run only.
	Identifying bool
}

// Parameters maps parameter names to values.
type Parameters map[string]Parameter

// Identifying returns a parameter that contributes to the key.
func Identifying(v any) Parameter { return Parameter{Value: v, Identifying: true} }

// NonIdentifying returns a parameter that does not contribute to the key.
func NonIdentifying(v any) Parameter { return Parameter{Value: v} }

// Generate returns the MD5 hex digest of the identifying parameters sorted
// by name and rendered as "name=value;". No identifying parameters yields
// the digest of the empty string.
func Generate(params Parameters) string {
	names := make([]string, 0, len(params))
	for name, p := range params {
		if p.Identifying {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		b.WriteString(name)
		b.WriteByte('=')
		b.WriteString(render(params[name].Value))
		b.WriteByte(';')
	}

	sum := md5.Sum([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

func render(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case time.Time:
		return x.UTC().Format(time.RFC3339Nano)
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}
