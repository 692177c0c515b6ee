package sumerrors_test

import (
	"fmt"
	"io"

	"github.com/ajitpratap0/csvsum/pkg/sumerrors"
)

// Example demonstrates basic error creation with details.
func Example() {
	err := sumerrors.New(sumerrors.ErrorTypeNonNumericField, "field is not numeric").
		WithDetail("row", 3).
		WithDetail("column", 2)

	fmt.Println(err.Error())

	// Output:
	// non_numeric_field: field is not numeric (column=2, row=3)
}

// ExampleWrap shows wrapping a worker failure around a data error.
func ExampleWrap() {
	dataErr := sumerrors.New(sumerrors.ErrorTypeNonNumericField, "field is not numeric")
	err := sumerrors.Wrap(dataErr, sumerrors.ErrorTypeWorkerFailure, "batch 4 failed")

	fmt.Println(sumerrors.IsType(err, sumerrors.ErrorTypeWorkerFailure))
	fmt.Println(sumerrors.IsType(err, sumerrors.ErrorTypeNonNumericField))
	fmt.Println(sumerrors.IsType(err, sumerrors.ErrorTypePlanning))

	// Output:
	// true
	// true
	// false
}

// ExampleTypeOf shows classifying an arbitrary error.
func ExampleTypeOf() {
	wrapped := sumerrors.Wrap(io.ErrUnexpectedEOF, sumerrors.ErrorTypeSourceUnavailable, "read failed")

	fmt.Println(sumerrors.TypeOf(wrapped))
	fmt.Println(sumerrors.TypeOf(io.EOF))

	// Output:
	// source_unavailable
	// internal
}
