package system

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"
)

type HTTPError struct {
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	return e.Message
}

func NewHTTPError400(message string) *HTTPError {
	return &HTTPError{StatusCode: http.StatusBadRequest, Message: message}
}

func NewHTTPError401(message string) *HTTPError {
	return &HTTPError{StatusCode: http.StatusUnauthorized, Message: message}
}

func NewHTTPError404(message string) *HTTPError {
	return &HTTPError{StatusCode: http.StatusNotFound, Message: message}
}

func NewHTTPError500(message string) *HTTPError {
	return &HTTPError{StatusCode: http.StatusInternalServerError, Message: message}
}

func NewHTTPError503(message string) *HTTPError {
	return &HTTPError{StatusCode: http.StatusServiceUnavailable, Message: message}
}

// functions that understand they need to return a http error
type httpWrapper[T any] func(res http.ResponseWriter, req *http.Request) (T, *HTTPError)

// Wrapper wraps a handler so errors are translated into status codes and
// successful results are JSON encoded.
func Wrapper[T any](handler httpWrapper[T]) func(res http.ResponseWriter, req *http.Request) {
	return func(res http.ResponseWriter, req *http.Request) {
		data, err := handler(res, req)
		if err != nil {
			log.Error().Str("path", req.URL.Path).Int("status", err.StatusCode).Msgf("error for route: %s", err.Error())
			statusCode := err.StatusCode
			if statusCode == 0 {
				statusCode = http.StatusInternalServerError
			}
			res.Header().Set("Content-Type", "application/json")
			res.WriteHeader(statusCode)
			_ = json.NewEncoder(res).Encode(map[string]string{"error": err.Message})
			return
		}
		res.Header().Set("Content-Type", "application/json")
		if jsonError := json.NewEncoder(res).Encode(data); jsonError != nil {
			log.Error().Msgf("error for json encoding: %s", jsonError.Error())
			http.Error(res, jsonError.Error(), http.StatusInternalServerError)
		}
	}
}
