package internal

// Pointer - Returns a pointer to a copy of v. Useful for optional JSON fields built from literals or struct fields.
func Pointer[T any](v T) *T {
	return &v
}

// Dereference - Returns the value behind p, or the zero value when p is nil.
func Dereference[T any](p *T) T {
	if p == nil {
		return *new(T)
	}
	return *p
}
