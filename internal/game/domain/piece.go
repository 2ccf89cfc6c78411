package domain

// Color is a piece color. The numeric values are the wire encoding.
type Color int

// Piece colors.
const (
	ColorKok1  Color = 0 // red
	ColorHuok2 Color = 1 // black
)

// Valid reports whether the color is one of the two defined values.
func (c Color) Valid() bool {
	return c == ColorKok1 || c == ColorHuok2
}

// Profession is a piece kind. The numeric values are the wire encoding.
type Profession int

// Piece professions.
const (
	ProfessionNuak1 Profession = 0 // vessel; the only piece that swims
	ProfessionKauk2 Profession = 1 // pawn
	ProfessionGua2  Profession = 2 // rook
	ProfessionKaun1 Profession = 3 // bishop
	ProfessionDau2  Profession = 4 // tiger
	ProfessionMaun1 Profession = 5 // horse
	ProfessionKua2  Profession = 6 // clerk
	ProfessionTuk2  Profession = 7 // shaman
	ProfessionUai1  Profession = 8 // general
	ProfessionIo    Profession = 9 // king
)

// Valid reports whether the profession is one of the defined values.
func (p Profession) Valid() bool {
	return p >= ProfessionNuak1 && p <= ProfessionIo
}
