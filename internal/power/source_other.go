//go:build !windows && !linux

package power

import "fmt"

func platformSource(name string) (Source, error) {
	if name == SourceAuto {
		return NoneSource{}, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupported, name)
}
