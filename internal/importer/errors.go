package importer

import (
	"errors"
	"fmt"
)

// FailureKind classifies a pipeline failure for the worker's top-level
// handler: input failures fail the job immediately, transient ones are
// retried with backoff, internal ones fail the job and page the logs.
type FailureKind string

const (
	FailureInput     FailureKind = "INPUT"
	FailureTransient FailureKind = "TRANSIENT"
	FailureInternal  FailureKind = "INTERNAL"
)

// User-facing messages, in Spanish like the statements themselves. The
// diagnostic error is logged, never surfaced.
const (
	msgPasswordRequired  = "El archivo PDF requiere contraseña."
	msgPasswordIncorrect = "La contraseña es incorrecta."
	msgCorruptDocument   = "El archivo está dañado o no es un PDF válido."
	msgNotStatement      = "El documento no parece ser un extracto bancario."
	msgUnsupportedFile   = "El tipo de archivo no es compatible. Sube un PDF o una foto del extracto."
	msgTransient         = "Ocurrió un error temporal procesando el archivo. Intenta de nuevo."
	msgInternal          = "Ocurrió un error inesperado procesando el archivo."
)

// Failure is a classified pipeline failure.
type Failure struct {
	Kind        FailureKind
	UserMessage string
	Err         error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("importer: %s failure: %v", f.Kind, f.Err)
}

func (f *Failure) Unwrap() error { return f.Err }

func inputFailure(userMessage string, err error) *Failure {
	return &Failure{Kind: FailureInput, UserMessage: userMessage, Err: err}
}

func transientFailure(err error) *Failure {
	return &Failure{Kind: FailureTransient, UserMessage: msgTransient, Err: err}
}

func internalFailure(err error) *Failure {
	return &Failure{Kind: FailureInternal, UserMessage: msgInternal, Err: err}
}

// AsFailure extracts the classified failure from an error chain; unclassified
// errors come back as internal.
func AsFailure(err error) *Failure {
	var f *Failure
	if errors.As(err, &f) {
		return f
	}
	return internalFailure(err)
}
