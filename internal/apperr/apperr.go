// Package apperr defines the error categories surfaced by the cart and order
// pipeline and how they map onto HTTP responses.
package apperr

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
)

type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindConflict
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "VALIDATION"
	case KindNotFound:
		return "NOT_FOUND"
	case KindConflict:
		return "CONFLICT"
	default:
		return "INTERNAL"
	}
}

// Error is a business-rule error. Fields carries per-field detail for
// validation errors and Details any extra payload a caller may render.
type Error struct {
	Kind    Kind
	Message string
	Fields  map[string]string
	Details any
}

func (e *Error) Error() string {
	return e.Message
}

func Validation(message string, fields map[string]string) *Error {
	return &Error{Kind: KindValidation, Message: message, Fields: fields}
}

// Field is shorthand for a validation error on a single field.
func Field(field, detail string) *Error {
	return Validation(fmt.Sprintf("%s %s", field, detail), map[string]string{field: detail})
}

func NotFound(message string) *Error {
	return &Error{Kind: KindNotFound, Message: message}
}

func Conflict(message string) *Error {
	return &Error{Kind: KindConflict, Message: message}
}

// KindOf reports the category of err, looking through wrapped errors.
// Errors outside the taxonomy are KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Status maps an error to its HTTP status code.
func Status(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return fiber.StatusBadRequest
	case KindNotFound:
		return fiber.StatusNotFound
	case KindConflict:
		return fiber.StatusConflict
	default:
		return fiber.StatusInternalServerError
	}
}

// Respond writes err as a JSON body using the status from Status.
func Respond(c *fiber.Ctx, err error) error {
	body := fiber.Map{"message": err.Error()}
	var e *Error
	if errors.As(err, &e) {
		body["code"] = e.Kind.String()
		if len(e.Fields) > 0 {
			body["errors"] = e.Fields
		}
		if e.Details != nil {
			body["details"] = e.Details
		}
	} else {
		body["message"] = "internal error"
	}
	return c.Status(Status(err)).JSON(body)
}
