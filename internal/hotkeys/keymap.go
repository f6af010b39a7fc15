package hotkeys

import (
	"fmt"

	"app-activate/internal/keyspec"
)

// codeAliases maps alternative spellings onto the canonical W3C code names
// used by the key tables. Lookups are case-insensitive.
var codeAliases = map[string]string{
	"return": "enter",
	"esc":    "escape",
	"left":   "arrowleft",
	"right":  "arrowright",
	"up":     "arrowup",
	"down":   "arrowdown",
	"del":    "delete",
	"grave":  "backquote",
}

// canonicalCode folds spec into the key used by backend tables.
func canonicalCode(spec keyspec.Spec) string {
	folded := spec.Fold()
	if alias, ok := codeAliases[folded]; ok {
		return alias
	}
	return folded
}

// letterCodes and digitCodes enumerate the names Normalize can produce, so
// every backend table is guaranteed to cover them.
func letterCodes() []string {
	out := make([]string, 0, 26)
	for ch := 'a'; ch <= 'z'; ch++ {
		out = append(out, fmt.Sprintf("key%c", ch))
	}
	return out
}

func digitCodes() []string {
	out := make([]string, 0, 10)
	for ch := '0'; ch <= '9'; ch++ {
		out = append(out, fmt.Sprintf("digit%c", ch))
	}
	return out
}

func functionCode(n int) string {
	return fmt.Sprintf("f%d", n)
}
