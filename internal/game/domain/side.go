package domain

// Side identifies one of the two players by the board half they started on.
// IASide owns the rows near IA; ASide owns the rows near A.
type Side int

// The two sides.
const (
	SideA Side = iota
	SideIA
)

// SideFromIADown maps the credential-scoped "is IA down for me" perspective
// flag to the side it controls.
func SideFromIADown(iaDown bool) Side {
	if iaDown {
		return SideIA
	}
	return SideA
}

// Opponent returns the other side.
func (s Side) Opponent() Side {
	if s == SideA {
		return SideIA
	}
	return SideA
}

// String returns the side name.
func (s Side) String() string {
	if s == SideIA {
		return "IASide"
	}
	return "ASide"
}
