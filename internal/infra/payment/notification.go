package payment

import (
	"bytes"
	"encoding/json"
	"net/url"
	"strings"
)

// Notification is the subset of a processor webhook body we act on.
// Both the current shape {"data":{"id":...}} and the legacy {"id":...} are accepted.
type Notification struct {
	Type   string
	Action string
	ID     string
}

type flexID string

func (f *flexID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*f = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		// objects and arrays are not ids
		*f = ""
		return nil
	}
	*f = flexID(n.String())
	return nil
}

type notificationBody struct {
	ID     flexID `json:"id"`
	Type   string `json:"type"`
	Topic  string `json:"topic"`
	Action string `json:"action"`
	Data   struct {
		ID flexID `json:"id"`
	} `json:"data"`
}

// ParseNotification extracts the intent id from a webhook delivery. data.id wins over
// the top-level id; the query string (data.id, then id) is consulted when the body has neither.
// A malformed body is not an error: ok is false when no id could be found anywhere.
func ParseNotification(body []byte, query url.Values) (n Notification, ok bool) {
	var nb notificationBody
	if len(bytes.TrimSpace(body)) > 0 {
		_ = json.Unmarshal(body, &nb)
	}
	n.Type = nb.Type
	if n.Type == "" {
		n.Type = nb.Topic
	}
	n.Action = nb.Action

	switch {
	case nb.Data.ID != "":
		n.ID = string(nb.Data.ID)
	case nb.ID != "":
		n.ID = string(nb.ID)
	case strings.TrimSpace(query.Get("data.id")) != "":
		n.ID = strings.TrimSpace(query.Get("data.id"))
	case strings.TrimSpace(query.Get("id")) != "":
		n.ID = strings.TrimSpace(query.Get("id"))
	}
	if n.Type == "" {
		n.Type = firstNonEmpty(query.Get("type"), query.Get("topic"))
	}
	return n, n.ID != ""
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
