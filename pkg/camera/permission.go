package camera

type Authorization string

const (
	Authorized    Authorization = "authorized"
	Denied        Authorization = "denied"
	Restricted    Authorization = "restricted"
	NotDetermined Authorization = "notDetermined"
	Unknown       Authorization = "unknown"
)

func (a Authorization) Granted() bool {
	return a == Authorized
}

// blocked reports whether enumeration must fail with a permission error.
// notDetermined and unknown let enumeration proceed; the OS will refuse on
// open if access really is missing.
func (a Authorization) blocked() bool {
	return a == Denied || a == Restricted
}
