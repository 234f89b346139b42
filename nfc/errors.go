package nfc

import (
	"errors"
	"fmt"
)

var (
	ErrReaderNotFound = errors.New("reader not found")
	ErrShortResponse  = errors.New("response shorter than the status word")
	ErrCardNotFound   = errors.New("card not found")
)

// ReaderNotFoundError is returned when monitoring is started without any attached readers.
type ReaderNotFoundError struct {
	Msg string
}

func (e *ReaderNotFoundError) Error() string {
	return e.Msg
}

func (e *ReaderNotFoundError) Is(target error) bool {
	return target == ErrReaderNotFound
}

// TransmitError is a failed exchange with the card. Code is the status reported by the transport, if any.
type TransmitError struct {
	Code uint32
	Err  error
}

func (e *TransmitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("transmit card returned %#x: %v", e.Code, e.Err)
	}
	return fmt.Sprintf("transmit card returned %#x", e.Code)
}

func (e *TransmitError) Unwrap() error {
	return e.Err
}

// StatusCoder is implemented by transport errors that carry a numeric status.
type StatusCoder interface {
	StatusCode() uint32
}
