package engine

// Typed faults let the HTTP layer map engine outcomes onto the
// 400/403/404/409/500 taxonomy without string matching.

type ValidationError struct {
	Message string
}

func (e ValidationError) Error() string { return e.Message }

type ForbiddenError struct {
	Message string
}

func (e ForbiddenError) Error() string { return e.Message }

func validationf(msg string) error { return ValidationError{Message: msg} }

func forbiddenf(msg string) error { return ForbiddenError{Message: msg} }
