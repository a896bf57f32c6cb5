package validate

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Rules bound the free-text field.
type Rules struct {
	MinLength int
	MaxLength int
}

// DefaultRules allow 1..200 characters.
var DefaultRules = Rules{MinLength: 1, MaxLength: 200}

const maxIDLength = 64

var (
	idPattern        = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
	timestampPattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}\.\d{3}Z$`)
)

// NewID builds a base36 millisecond prefix and a random alphanumeric suffix.
// Unique enough within one session; not a global identifier.
func NewID(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")
	return strconv.FormatInt(now.UnixMilli(), 36) + "-" + suffix[:10]
}
