package types

import (
	"crypto/rand"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

const (
	UUID_PREFIX_SUBSCRIPTION = "sub"
	UUID_PREFIX_PAYMENT      = "pay"
	UUID_PREFIX_SYNC_RUN     = "sync"
	UUID_PREFIX_REQUEST      = "req"
)

// GenerateUUID returns a lower-cased ULID, sortable by creation time
func GenerateUUID() string {
	return strings.ToLower(ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String())
}

// GenerateUUIDWithPrefix returns a ULID prefixed with the entity kind, e.g. sub_01h...
func GenerateUUIDWithPrefix(prefix string) string {
	if prefix == "" {
		return GenerateUUID()
	}
	return fmt.Sprintf("%s_%s", prefix, GenerateUUID())
}
