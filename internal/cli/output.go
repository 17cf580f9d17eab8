package cli

import (
	"encoding/json"
	"fmt"
	"io"
)

// printResult writes v as indented JSON, or text for the text format.
func printResult(w io.Writer, format string, v any, text func(io.Writer)) error {
	if format == "json" || text == nil {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	text(w)
	return nil
}

func field(w io.Writer, name string, value any) {
	fmt.Fprintf(w, "%-12s %v\n", name+":", value)
}
