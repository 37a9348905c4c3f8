// SPDX-License-Identifier: GPL-2.0-or-later

package atom

import (
	"fmt"
	"io"
	"strings"
)

// Dump writes one line per atom: size, hex code, depth and name.
// Schema leaves are followed by their header.
func Dump(w io.Writer, a Atom) error {
	return dump(w, a, 0)
}

func dump(w io.Writer, a Atom, depth int) error {
	line := fmt.Sprintf("%6d %08x %s-%v", a.Size(), uint32(a.Code()), strings.Repeat(" |", depth), a.Code())
	if s, ok := a.(*Schema); ok {
		if !s.header.IsZero() {
			line += " " + s.header.String()
		}
		if s.desc.Record != nil {
			line += fmt.Sprintf(" records=%d", len(s.records))
		}
	}
	if _, err := fmt.Fprintln(w, line); err != nil {
		return err
	}

	c, ok := a.(*Container)
	if !ok {
		return nil
	}
	for _, child := range c.children {
		if err := dump(w, child, depth+1); err != nil {
			return err
		}
	}
	return nil
}
