package errors

import (
	"fmt"
)

var (
	ErrInvalidConfig  = fmt.Errorf("atendai: invalid config")
	ErrNotFound       = fmt.Errorf("atendai: not found")
	ErrInvalidParams  = fmt.Errorf("atendai: invalid params")
	ErrUpstream       = fmt.Errorf("atendai: upstream error")
	ErrTimeout        = fmt.Errorf("atendai: timeout")
	ErrInvalidRequest = fmt.Errorf("atendai: invalid request")
)
