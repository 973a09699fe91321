package ir

import "fmt"

// SSAName is (variable name, version). Version 0 is reserved for the
// live-on-entry placeholder a use reads when no definition reaches it
// within the function (§3, §4.3's failure model).
type SSAName struct {
	Var     string
	Version int
}

func (n SSAName) String() string {
	if n.Version == 0 {
		return n.Var + "@entry"
	}
	return fmt.Sprintf("%s.%d", n.Var, n.Version)
}

func (n SSAName) Equal(o SSAName) bool { return n.Var == o.Var && n.Version == o.Version }
