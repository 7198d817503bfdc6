package camera

import (
	"strconv"
)

// Assignment pairs a UI facing device id with the descriptor it names.
type Assignment struct {
	ID     string
	Device Descriptor
}

// AssignIDs gives every descriptor a UI facing id in one pass over the
// catalog order. Built-in cameras take the suffix of their unique id;
// external cameras take builtInSoFar+externalSoFar.
//
// The external ids are positional: the same snapshot order always yields
// the same ids, but a hot-plug or a reordering by the OS can shift them.
func AssignIDs(devices []Descriptor) []Assignment {
	res := make([]Assignment, 0, len(devices))
	var builtIn, external int
	for _, d := range devices {
		if d.External {
			res = append(res, Assignment{ID: strconv.Itoa(builtIn + external), Device: d})
			external++
			continue
		}
		res = append(res, Assignment{ID: d.suffix(), Device: d})
		builtIn++
	}

	return res
}

func lookupID(assignments []Assignment, d Descriptor) string {
	for _, a := range assignments {
		if a.Device.UniqueID == d.UniqueID {
			return a.ID
		}
	}
	return ""
}
