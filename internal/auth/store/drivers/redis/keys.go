package redis

import (
	"strings"

	"github.com/aussiebroadwan/authcore/internal/auth/domain"
)

const (
	kindActive = "tok"
	kindUsed   = "used"
)

type keyspace struct {
	prefix string
}

// member is the chain set entry for a record: the key without the prefix.
func member(kind string, typ domain.TokenType, hash string) string {
	return kind + ":" + typ.String() + ":" + hash
}

func (k keyspace) active(typ domain.TokenType, hash string) string {
	return k.prefix + member(kindActive, typ, hash)
}

func (k keyspace) used(typ domain.TokenType, hash string) string {
	return k.prefix + member(kindUsed, typ, hash)
}

func (k keyspace) chain(clientID, anchor string) string {
	return k.prefix + "chain:" + clientID + ":" + anchor
}

func (k keyspace) fromMember(m string) string { return k.prefix + m }

func (k keyspace) schema() string { return k.prefix + "schema" }

func (k keyspace) pattern(kind string) string {
	return escapeGlob(k.prefix) + kind + ":*"
}

func escapeGlob(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`)
	return r.Replace(s)
}
