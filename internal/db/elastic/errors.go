package elastic

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/elastic/go-elasticsearch/v8/esapi"
)

// Cause is one node of an Elasticsearch error tree.
type Cause struct {
	Type      string  `json:"type"`
	Reason    string  `json:"reason"`
	CausedBy  *Cause  `json:"caused_by,omitempty"`
	RootCause []Cause `json:"root_cause,omitempty"`

	FailedShards []struct {
		Reason Cause `json:"reason"`
	} `json:"failed_shards,omitempty"`
}

// ResponseError is a non-2xx Elasticsearch response with its decoded error body.
type ResponseError struct {
	Status int
	Cause  Cause
}

func (e *ResponseError) Error() string {
	if e.Cause.Type == "" {
		return fmt.Sprintf("elasticsearch: status %d: %s", e.Status, e.Cause.Reason)
	}
	return fmt.Sprintf("elasticsearch: status %d: %s: %s", e.Status, e.Cause.Type, e.Cause.Reason)
}

// Causes flattens the error tree: the top cause, its caused_by chain, every root cause,
// and the reasons of failed shards, each followed by their own chains.
func (e *ResponseError) Causes() []Cause {
	var out []Cause
	var walk func(c *Cause)
	walk = func(c *Cause) {
		for ; c != nil; c = c.CausedBy {
			if c.Type != "" || c.Reason != "" {
				out = append(out, *c)
			}
			for i := range c.RootCause {
				walk(&c.RootCause[i])
			}
			for i := range c.FailedShards {
				walk(&c.FailedShards[i].Reason)
			}
		}
	}
	walk(&e.Cause)
	return out
}

type errorBody struct {
	Error  json.RawMessage `json:"error"`
	Status int             `json:"status"`
}

// decodeError reads an error response body. Unparseable bodies keep the raw text as reason.
func decodeError(res *esapi.Response) *ResponseError {
	re := &ResponseError{Status: res.StatusCode}
	if res.Body == nil {
		re.Cause.Reason = res.Status()
		return re
	}

	data, err := io.ReadAll(res.Body)
	if err != nil || len(data) == 0 {
		re.Cause.Reason = res.Status()
		return re
	}

	var body errorBody
	if err := json.Unmarshal(data, &body); err != nil || len(body.Error) == 0 {
		re.Cause.Reason = string(data)
		return re
	}
	if body.Status != 0 {
		re.Status = body.Status
	}

	if err := json.Unmarshal(body.Error, &re.Cause); err != nil {
		var msg string
		if json.Unmarshal(body.Error, &msg) == nil {
			re.Cause.Reason = msg
		} else {
			re.Cause.Reason = string(body.Error)
		}
	}
	return re
}
