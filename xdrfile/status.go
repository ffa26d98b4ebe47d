package xdrfile

import "fmt"

// Status mirrors the integer return codes of the reference libxdrfile
// C library, so the conditions reported by this package line up one to
// one with the ones a C-based reader would report for the same file.
// A Status is itself an error.
type Status int

const (
	StatusOK Status = iota
	StatusHeader
	StatusString
	StatusDouble
	StatusInt
	StatusFloat
	StatusUInt
	Status3DCoord
	StatusClose
	StatusMagic
	StatusNoMem
	StatusEndOfFile
	StatusFileNotFound
)

var statusMessages = map[Status]string{
	StatusOK:           "OK",
	StatusHeader:       "Header",
	StatusString:       "String",
	StatusDouble:       "Double",
	StatusInt:          "Integer",
	StatusFloat:        "Float",
	StatusUInt:         "Unsigned integer",
	Status3DCoord:      "Compressed 3D coordinate",
	StatusClose:        "Closing file",
	StatusMagic:        "Magic number",
	StatusNoMem:        "Not enough memory",
	StatusEndOfFile:    "End of file",
	StatusFileNotFound: "File not found",
}

func (s Status) Error() string {
	m, ok := statusMessages[s]
	if !ok {
		return fmt.Sprintf("xdrfile: unknown status code %d", int(s))
	}
	return fmt.Sprintf("xdrfile: %s", m)
}
