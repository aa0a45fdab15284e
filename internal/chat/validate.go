package chat

import (
	"fmt"
	"strings"
	"unicode"
)

// reservedNames are command words the channel switcher claims for itself;
// a channel with one of these names would be unreachable.
var reservedNames = map[string]struct{}{
	"del":  {},
	"new":  {},
	"list": {},
	"all":  {},
	"none": {},
	"help": {},
	"quit": {},
	"exit": {},
}

// ValidateChannelName checks a proposed channel name: non-empty, no
// whitespace, at most maxLen characters, not a reserved word.
func ValidateChannelName(name string, maxLen int) error {
	if name == "" {
		return fmt.Errorf("%w: empty", ErrInvalidChannelName)
	}
	if strings.IndexFunc(name, unicode.IsSpace) >= 0 {
		return fmt.Errorf("%w: contains whitespace", ErrInvalidChannelName)
	}
	if len([]rune(name)) > maxLen {
		return fmt.Errorf("%w: longer than %d characters", ErrInvalidChannelName, maxLen)
	}
	if _, ok := reservedNames[strings.ToLower(name)]; ok {
		return fmt.Errorf("%w: %q is reserved", ErrInvalidChannelName, name)
	}
	return nil
}
