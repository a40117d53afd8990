package forward

import (
	"net/http"
	"strings"
)

// Method is an HTTP method the engine knows how to forward.
type Method string

const (
	MethodGet    Method = http.MethodGet
	MethodPost   Method = http.MethodPost
	MethodPut    Method = http.MethodPut
	MethodDelete Method = http.MethodDelete
	MethodPatch  Method = http.MethodPatch
)

// Methods lists the supported methods.
var Methods = []Method{MethodGet, MethodPost, MethodPut, MethodDelete, MethodPatch}

// ParseMethod maps a method token, in any case, to a supported Method.
func ParseMethod(s string) (Method, error) {
	switch m := Method(strings.ToUpper(strings.TrimSpace(s))); m {
	case MethodGet, MethodPost, MethodPut, MethodDelete, MethodPatch:
		return m, nil
	default:
		return "", &UnsupportedMethodError{Method: s}
	}
}

// SendsBody reports whether the method carries the payload as a JSON body.
func (m Method) SendsBody() bool {
	switch m {
	case MethodPost, MethodPut, MethodPatch:
		return true
	default:
		return false
	}
}

func (m Method) String() string { return string(m) }
