package iotkit

import (
	"fmt"
	"strings"
)

// UnexpectedResponseError reports a remote call that answered with a
// status code other than the one the operation expects. It carries the
// observed status and body for diagnostics.
type UnexpectedResponseError struct {
	Method string
	Path   string
	Status int
	Body   string
}

func (e UnexpectedResponseError) Error() string {
	return fmt.Sprintf("iotkit api %s %s: unexpected status %d: %s",
		e.Method, e.Path, e.Status, strings.TrimSpace(e.Body))
}
