package attachment

import (
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// KeyGenerator mints storage keys of the form {category}/{parentId}/{token}{ext}.
type KeyGenerator struct {
	token func() string
}

// NewKeyGenerator returns a generator using random UUIDv4 tokens.
func NewKeyGenerator() *KeyGenerator {
	return &KeyGenerator{token: uuid.NewString}
}

// Generate returns a fresh key for a file named originalName under target.
func (g *KeyGenerator) Generate(target Target, originalName string) string {
	var b strings.Builder
	b.WriteString(string(target.Category))
	b.WriteByte('/')
	b.WriteString(strconv.FormatInt(target.ID, 10))
	b.WriteByte('/')
	b.WriteString(g.token())
	b.WriteString(Extension(originalName))
	return b.String()
}

// Extension returns the last dot-suffix of name, dot included, or "" when there is none.
// Only ASCII letters and digits may follow the dot; anything else drops the suffix
// so keys and the URLs built from them stay clean.
func Extension(name string) string {
	i := strings.LastIndexByte(name, '.')
	if i < 0 || i == len(name)-1 {
		return ""
	}
	for _, r := range name[i+1:] {
		if !isASCIIAlnum(r) {
			return ""
		}
	}
	return name[i:]
}

func isASCIIAlnum(r rune) bool {
	return ('a' <= r && r <= 'z') || ('A' <= r && r <= 'Z') || ('0' <= r && r <= '9')
}
