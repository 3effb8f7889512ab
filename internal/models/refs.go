package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ID is a backend identifier. The wire form may be a string, a number or an
// extended-JSON object like {"$oid": "..."}; all decode to the same string.
type ID string

// String returns the identifier as a plain string.
func (id ID) String() string {
	return string(id)
}

// UnmarshalJSON accepts string, number and {"$oid": ...} encodings.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*id = ""
		return nil
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(strings.TrimSpace(s))
		return nil
	case '{':
		var obj struct {
			OID string `json:"$oid"`
			ID  *ID    `json:"_id"`
		}
		if err := json.Unmarshal(data, &obj); err != nil {
			return err
		}
		switch {
		case obj.OID != "":
			*id = ID(obj.OID)
		case obj.ID != nil:
			*id = *obj.ID
		default:
			*id = ""
		}
		return nil
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("invalid id %s", string(data))
		}
		*id = ID(n.String())
		return nil
	}
}

// UserRef is a reference to a user that arrives either as a bare id or as an
// embedded user document.
type UserRef struct {
	ID    ID     `json:"_id"`
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
}

// UnmarshalJSON normalizes both the raw-id and embedded-object shapes.
func (u *UserRef) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	*u = UserRef{}
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	if data[0] != '{' {
		return u.ID.UnmarshalJSON(data)
	}
	var obj struct {
		ID    ID     `json:"_id"`
		AltID ID     `json:"id"`
		Email string `json:"email"`
		Role  string `json:"role"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	u.ID = obj.ID
	if u.ID == "" {
		u.ID = obj.AltID
	}
	u.Email = obj.Email
	u.Role = obj.Role
	return nil
}

// Timestamp is a server timestamp. Missing or unparsable values are kept as
// invalid and order as the Unix epoch.
type Timestamp struct {
	Time  time.Time
	Valid bool
}

// TimestampOf wraps a valid time.
func TimestampOf(t time.Time) Timestamp {
	return Timestamp{Time: t, Valid: true}
}

// UnixMilli returns milliseconds since the epoch, or 0 when invalid.
func (ts Timestamp) UnixMilli() int64 {
	if !ts.Valid {
		return 0
	}
	return ts.Time.UnixMilli()
}

// Label renders the timestamp for display.
func (ts Timestamp) Label() string {
	if !ts.Valid {
		return "Not available"
	}
	return ts.Time.Local().Format("2006-01-02 15:04:05")
}

// UnmarshalJSON accepts RFC 3339 strings and millisecond numbers.
func (ts *Timestamp) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	*ts = Timestamp{}
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return nil
		}
		s = strings.TrimSpace(s)
		for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.000Z0700", "2006-01-02"} {
			if parsed, err := time.Parse(layout, s); err == nil {
				*ts = TimestampOf(parsed)
				return nil
			}
		}
		return nil
	}
	if ms, err := strconv.ParseInt(string(data), 10, 64); err == nil {
		*ts = TimestampOf(time.UnixMilli(ms).UTC())
	}
	return nil
}

// MarshalJSON writes RFC 3339 or null.
func (ts Timestamp) MarshalJSON() ([]byte, error) {
	if !ts.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(ts.Time.UTC().Format(time.RFC3339Nano))
}
