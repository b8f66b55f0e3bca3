package apierrors

import "net/http"

// StatusCode maps a netring error kind to its HTTP status, following
// spec §7's kind→behavior table.
func StatusCode(err error) int {
	if err == nil {
		return http.StatusOK
	}
	switch {
	case IsInvalidInput(err):
		return http.StatusBadRequest
	case IsGone(err):
		return http.StatusGone
	case IsNotFound(err):
		return http.StatusNotFound
	case IsTransient(err):
		return http.StatusServiceUnavailable
	case IsFatal(err), IsBugCaught(err):
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
