package molecule

import "errors"

// ErrNotFound is returned when an atom or bond id is outside the molecule.
var ErrNotFound = errors.New("not found")
