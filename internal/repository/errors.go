// Package repository defines error values that are reused across the
// data access layer and the lending service. These sentinel values
// allow higher layers such as handlers to distinguish between
// different failure scenarios. For example, ErrForbidden indicates
// that the current user is not a party to the resource they are
// acting on, while ErrConflict signals that a concurrent transition
// won a race (e.g. two approvals for the same book).
package repository

import "errors"

// ErrValidation is returned when input is malformed: empty title or
// author, or a duration outside the allowed range. It is always
// detected before any write. Handlers should translate this into an
// HTTP 400 response.
var ErrValidation = errors.New("validation failed")

// ErrBookNotFound is returned when a referenced book does not exist.
// Handlers should translate this into an HTTP 404 response.
var ErrBookNotFound = errors.New("book not found")

// ErrRequestNotFound is returned when a referenced borrow request
// does not exist. Handlers should translate this into an HTTP 404
// response.
var ErrRequestNotFound = errors.New("borrow request not found")

// ErrForbidden is returned when the caller attempts an operation they
// are not authorized for, such as approving a request for someone
// else's book. Handlers should translate this into an HTTP 403
// response.
var ErrForbidden = errors.New("forbidden")

// ErrInvalidState is returned when a transition is attempted from a
// state that forbids it, such as approving an already rejected
// request. Handlers should translate this into an HTTP 409 response.
var ErrInvalidState = errors.New("invalid state")

// ErrConflict is returned when an operation lost a race against a
// concurrent transition, such as requesting a book that was borrowed
// in the meantime, or the second of two simultaneous approvals.
// Handlers should translate this into an HTTP 409 response.
var ErrConflict = errors.New("conflict")
