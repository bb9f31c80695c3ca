package macro

import "strings"

const statusPrefix = "BatchCommand finished: "

// Response is a raw reply split into payload and the batch status line.
type Response struct {
	Payload string
	Status  string
	OK      bool
}

// ParseResponse separates the trailing "BatchCommand finished:" line, if any,
// from the payload. OK is true only for an explicit "OK" status.
func ParseResponse(text string) Response {
	trimmed := strings.TrimRight(text, "\n")
	idx := strings.LastIndex(trimmed, "\n")
	last := trimmed[idx+1:]

	if !strings.HasPrefix(last, statusPrefix) {
		return Response{Payload: text}
	}

	status := strings.TrimSpace(strings.TrimPrefix(last, statusPrefix))
	payload := ""
	if idx >= 0 {
		payload = trimmed[:idx+1]
	}
	return Response{
		Payload: payload,
		Status:  status,
		OK:      status == "OK",
	}
}
