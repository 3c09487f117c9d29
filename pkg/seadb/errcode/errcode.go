package errcode

import (
	"encoding/json"
	"errors"
	"strings"

	"google.golang.org/grpc/status"
)

// ErrWithCode 带错误码的错误，可以跨 gRPC 传递
type ErrWithCode struct {
	Code int               `json:"code"`
	Data map[string]string `json:"data,omitempty"`
	Msg  string            `json:"msg"`
}

func New(code int, msg string) *ErrWithCode {
	return &ErrWithCode{Code: code, Msg: msg}
}

func WithData(err *ErrWithCode, data map[string]string) *ErrWithCode {
	return &ErrWithCode{Code: err.Code, Data: data, Msg: err.Msg}
}

func WithMsg(err *ErrWithCode, msg string) *ErrWithCode {
	return &ErrWithCode{Code: err.Code, Data: err.Data, Msg: msg}
}

// Error implements the error interface.
func (e *ErrWithCode) Error() string {
	bytes, err := json.Marshal(e)
	if err != nil {
		return err.Error()
	}
	return string(bytes)
}

func As(err error) (*ErrWithCode, bool) {
	for ; err != nil; err = errors.Unwrap(err) {
		s := err.Error()
		if !strings.HasPrefix(s, "{") {
			continue
		}
		var e ErrWithCode
		if err := json.Unmarshal([]byte(s), &e); err != nil {
			continue
		}
		return &e, true
	}
	return nil, false
}

// Is implements the comparison for errors.Is.
func (e *ErrWithCode) Is(target error) bool {
	as, ok := As(target)
	if !ok {
		return false
	}
	return e.Code == as.Code
}

// ToGRPCError converts a custom error to a gRPC error with a status code.
func (e *ErrWithCode) ToGRPCError() error {
	st := status.New(10086, e.Error())
	return st.Err()
}

// FromGRPCError converts a gRPC error to a custom error if possible.
func FromGRPCError(err error) *ErrWithCode {
	st, ok := status.FromError(err)
	if !ok {
		return nil
	}
	var e ErrWithCode
	if err := json.Unmarshal([]byte(st.Message()), &e); err != nil {
		return nil
	}
	return &e
}

var (
	ErrInvalidContext       = New(2001, "route context without database")
	ErrTransport            = New(2002, "route fetch transport failure")
	ErrTimeout              = New(2003, "route fetch timeout")
	ErrUnexpectedRouteEntry = New(2004, "unrequested table in route response")
	ErrDatabaseRequired     = New(2005, "no database given and no default database")
	ErrWrongEndpoint        = New(2006, "wrong endpoint")
	ErrMaxRetries           = New(2007, "max retries")
	ErrBadEndpoint          = New(2008, "bad endpoint")
)
