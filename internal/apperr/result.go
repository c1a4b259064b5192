package apperr

// ActionResult is the envelope returned by every form action.
type ActionResult struct {
	Success bool              `json:"success"`
	Message string            `json:"message,omitempty"`
	Errors  map[string]string `json:"errors,omitempty"`
	Data    any               `json:"data,omitempty"`
}

// OK builds a successful result.
func OK(message string, data any) ActionResult {
	return ActionResult{Success: true, Message: message, Data: data}
}

// Result converts err into a failed result.
func Result(err error) ActionResult {
	res := ActionResult{Success: false, Message: Message(err)}
	if e, ok := As(err); ok && len(e.Fields) > 0 {
		res.Errors = e.Fields
	}
	return res
}
