package capture

import (
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"
)

// MaxRandomSuffix bounds RandomSuffix, matching the historical 0..32767 range.
const MaxRandomSuffix = 32767

// NameGenerator produces the bucket name for a capture run.
type NameGenerator interface {
	Generate() string
}

// RandomSuffix yields "<prefix>-<n>" with n in [0, MaxRandomSuffix].
type RandomSuffix struct {
	Prefix string
	Rand   *rand.Rand
}

func NewRandomSuffix(prefix string) *RandomSuffix {
	return &RandomSuffix{
		Prefix: prefix,
		Rand:   rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *RandomSuffix) Generate() string {
	return fmt.Sprintf("%s-%d", trimPrefix(r.Prefix), r.Rand.Intn(MaxRandomSuffix+1))
}

// UUIDSuffix yields "<prefix>-<first 8 hex digits of a random UUID>".
type UUIDSuffix struct {
	Prefix string
}

func (u UUIDSuffix) Generate() string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return fmt.Sprintf("%s-%s", trimPrefix(u.Prefix), id[:8])
}

// Static always yields the same name.
type Static string

func (s Static) Generate() string {
	return string(s)
}

// NewNameGenerator picks a strategy by name: "random" (default) or "uuid".
func NewNameGenerator(strategy, prefix string) (NameGenerator, error) {
	switch strings.ToLower(strings.TrimSpace(strategy)) {
	case "", "random":
		return NewRandomSuffix(prefix), nil
	case "uuid":
		return UUIDSuffix{Prefix: prefix}, nil
	default:
		return nil, fmt.Errorf("unknown bucket name strategy %q (want random or uuid)", strategy)
	}
}

func trimPrefix(prefix string) string {
	return strings.TrimRight(prefix, "-")
}
