package disasm

import (
	"bufio"
	"fmt"
	"io"
)

// WriteHexDump writes a hex dump of data starting at startOffset.
func WriteHexDump(out io.Writer, data []byte, startOffset int) error {
	f := bufio.NewWriter(out)
	for i := startOffset; i < len(data); i += 16 {
		// Offset
		fmt.Fprintf(f, "[%08x] ", i)

		// Hex bytes
		end := i + 16
		if end > len(data) {
			end = len(data)
		}
		for j := i; j < end; j++ {
			fmt.Fprintf(f, "%02x ", data[j])
		}
		// Padding
		for j := end; j < i+16; j++ {
			fmt.Fprint(f, "   ")
		}

		// ASCII
		fmt.Fprint(f, " |")
		for j := i; j < end; j++ {
			c := data[j]
			if c >= 0x20 && c <= 0x7e {
				f.WriteByte(c)
			} else {
				f.WriteByte('.')
			}
		}
		fmt.Fprintln(f, "|")
	}
	return f.Flush()
}
