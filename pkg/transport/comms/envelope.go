package comms

import "encoding/json"

// HeaderSender carries the sending renderer's id on renderer to main messages.
const HeaderSender = "Ipc-Sender"

// Reply is the JSON envelope main sends back for a request.
type Reply struct {
	Ok     bool            `json:"ok"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *ErrorDetail    `json:"error,omitempty"`
}

// ErrorDetail holds structured error information.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func errorReply(code, message string) *Reply {
	return &Reply{
		Ok:    false,
		Error: &ErrorDetail{Code: code, Message: message},
	}
}
