package tool

// Result is the uniform outcome of every function execution. A failed
// execution is a Result with Success=false, never an error escaping the
// registry boundary.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

func Fail(message string) Result {
	return Result{Success: false, Message: message}
}

func FailErr(message, errText string) Result {
	return Result{Success: false, Message: message, Error: errText}
}

func OK(message string, data any) Result {
	return Result{Success: true, Message: message, Data: data}
}
