// Package jsonnum decodes integer request fields that clients send either as
// JSON numbers or as numeric strings, as HTML forms do.
package jsonnum

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Int64 accepts 3, "3" and " 3 ". null and "" decode to zero, which request
// validation treats as absent.
type Int64 int64

func (n *Int64) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*n = 0
		return nil
	}

	raw := string(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		raw = strings.TrimSpace(s)
		if raw == "" {
			*n = 0
			return nil
		}
	}

	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return fmt.Errorf("jsonnum: %q is not an integer", raw)
	}
	*n = Int64(v)
	return nil
}

// Ptr returns the value as a reference, or nil when n is absent or zero.
func (n *Int64) Ptr() *int64 {
	if n == nil || *n == 0 {
		return nil
	}
	v := int64(*n)
	return &v
}
