package canonform

import "github.com/kontext-systems/audit-core/pkg/kontextmodel"

// SerializeEvent returns the canonical byte representation of e used as
// chain hashing input: digest, prior_digest and salt are excluded, since
// those fields are produced by the chain from this very serialization and
// including them would make the digest depend on itself.
func SerializeEvent(e kontextmodel.Event) ([]byte, error) {
	return Marshal(e.WithoutChainFields())
}
