package memebot

import "errors"

var (
	// ErrValidation indicates malformed or insufficient command arguments.
	ErrValidation = errors.New("memebot: invalid arguments")
	// ErrNotFound indicates an unknown command, meme, or citizen.
	ErrNotFound = errors.New("memebot: not found")
	// ErrForbidden indicates an operation the requesting identity may not perform.
	ErrForbidden = errors.New("memebot: forbidden")
	// ErrConflict indicates a reserved-word or duplicate-command registration.
	ErrConflict = errors.New("memebot: command conflict")
	// ErrContention indicates a bounded wait on a shared resource timed out.
	ErrContention = errors.New("memebot: resource contention")
	// ErrPersistence indicates a durable write failed.
	ErrPersistence = errors.New("memebot: persistence failure")

	// ErrInvalidEvent indicates that an event does not satisfy protocol invariants.
	ErrInvalidEvent = errors.New("memebot: invalid event")
	// ErrServiceAlreadyRegistered indicates duplicate service registration.
	ErrServiceAlreadyRegistered = errors.New("memebot: service already registered")
	// ErrServiceNotFound indicates a service lookup miss.
	ErrServiceNotFound = errors.New("memebot: service not found")
	// ErrModuleAlreadyRegistered indicates duplicate module registration.
	ErrModuleAlreadyRegistered = errors.New("memebot: module already registered")
	// ErrDriverAlreadyRegistered indicates duplicate driver registration.
	ErrDriverAlreadyRegistered = errors.New("memebot: driver already registered")
)
