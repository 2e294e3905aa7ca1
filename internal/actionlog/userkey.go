package actionlog

import (
	"encoding/json"
	"regexp"

	"github.com/jmespath/go-jmespath"
)

// plainField matches expressions that name a single top-level key
var plainField = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// userKey is a comparable form of a payload's user id. The zero value is
// the missing id, which only equals another missing id. value holds the
// JSON encoding so "1" and 1 stay distinct.
type userKey struct {
	present bool
	value   string
}

// extractUser evaluates expr against payload. A payload that is not JSON,
// or whose id is absent, yields the missing key. When field is set the
// lookup is a plain key and an explicit null is kept distinct from absence;
// other expressions cannot tell the two apart and both read as missing.
func extractUser(expr *jmespath.JMESPath, field string, payload json.RawMessage) userKey {
	if len(payload) == 0 {
		return userKey{}
	}
	var decoded any
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return userKey{}
	}
	if field != "" {
		obj, ok := decoded.(map[string]any)
		if !ok {
			return userKey{}
		}
		v, ok := obj[field]
		if !ok {
			return userKey{}
		}
		if v == nil {
			return userKey{present: true, value: "null"}
		}
	}
	res, err := expr.Search(decoded)
	if err != nil || res == nil {
		return userKey{}
	}
	b, err := json.Marshal(res)
	if err != nil {
		return userKey{}
	}
	return userKey{present: true, value: string(b)}
}
