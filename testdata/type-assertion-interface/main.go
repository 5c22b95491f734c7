// Package main checks how interface type assertions filter the states of
// error values.
package main

import (
	"fmt"
)

// CustomError is implemented by errors raised by the application.
type CustomError interface {
	error
	IsCustom()
}

// AppError implements CustomError
type AppError struct {
	message string
}

func (e AppError) Error() string {
	return e.message
}

func (e AppError) IsCustom() {}

// ValidationError also implements CustomError
type ValidationError struct {
	field string
}

func (v ValidationError) Error() string {
	return "validation failed: " + v.field
}

func (v ValidationError) IsCustom() {}

// PlainError is an error that is not a CustomError.
type PlainError struct {
	code int
}

func (p *PlainError) Error() string {
	return fmt.Sprintf("error code: %d", p.code)
}

// UnusedError is never created.
type UnusedError struct {
	code int
}

func (u UnusedError) Error() string {
	return fmt.Sprintf("error code: %d", u.code)
}

func (u UnusedError) unusedMethod() string {
	return "never called"
}

// ProcessError only calls IsCustom on the custom errors it receives.
func ProcessError(err error) string {
	if customErr, ok := err.(CustomError); ok {
		customErr.IsCustom()
		return "custom error: " + customErr.Error()
	}
	return "standard error: " + err.Error()
}

// mustCustom fails for plain errors.
func mustCustom(err error) CustomError {
	return err.(CustomError)
}

func main() {
	appErr := AppError{message: "app failed"}
	valErr := ValidationError{field: "email"}

	fmt.Println(ProcessError(appErr))
	fmt.Println(ProcessError(valErr))
	fmt.Println(ProcessError(&PlainError{code: 7}))
	fmt.Println(ProcessError(fmt.Errorf("generic error")))

	mustCustom(appErr)
	mustCustom(&PlainError{code: 8})
}
