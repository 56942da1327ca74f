package view

// Response is the envelope every JSON endpoint returns.
type Response[T any] struct {
	Data    T           `json:"data"`
	Error   *string     `json:"error,omitempty"`
	Request interface{} `json:"request,omitempty"`
	Message string      `json:"message,omitempty"`
}

type MessageResponse struct {
	Data    string  `json:"data"`
	Message string  `json:"message"`
	Error   *string `json:"error,omitempty"`
}

type ErrorResponse struct {
	Error   string      `json:"error"`
	Request interface{} `json:"request,omitempty"`
	Message string      `json:"message"`
}

func CreateResponse[T any](data T, err error, req interface{}, message string) Response[T] {
	resp := Response[T]{
		Data:    data,
		Request: req,
		Message: message,
	}
	if err != nil {
		msg := err.Error()
		resp.Error = &msg
	}
	return resp
}
