package claims

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func actorIdentity(depth int) *Identity {
	identity := NewIdentity()
	identity.AddClaim(Claim{
		Type:      ClaimTypeRole,
		Value:     fmt.Sprintf("level-%d", depth),
		ValueType: ValueTypeString,
		Issuer:    "idp",
	})
	if depth > 1 {
		identity.Actor = actorIdentity(depth - 1)
	}
	return identity
}

func TestActorRoundTrip(t *testing.T) {
	for depth := 1; depth <= 4; depth++ {
		t.Run(fmt.Sprintf("depth-%d", depth), func(t *testing.T) {
			original := actorIdentity(depth)

			blob, err := EncodeActor(original)
			require.NoError(t, err)

			decoded, err := DecodeActor(blob, "idp")
			require.NoError(t, err)

			for level := depth; level >= 1; level-- {
				require.NotNil(t, decoded, "missing identity at level %d", level)
				roles := decoded.FindAll(ClaimTypeRole)
				require.Len(t, roles, 1)
				assert.Equal(t, fmt.Sprintf("level-%d", level), roles[0].Value)
				decoded = decoded.Actor
			}
			assert.Nil(t, decoded, "chain deeper than encoded")
		})
	}
}

func TestEncodeActor_SkipsNameIdentifier(t *testing.T) {
	actor := NewIdentity()
	actor.AddClaim(Claim{Type: ClaimTypeNameIdentifier, Value: "svc"})
	actor.AddClaim(Claim{Type: ClaimTypeRole, Value: "system"})

	blob, err := EncodeActor(actor)
	require.NoError(t, err)

	decoded, err := DecodeActor(blob, "idp")
	require.NoError(t, err)
	assert.Empty(t, decoded.FindAll(ClaimTypeNameIdentifier))
	assert.Len(t, decoded.FindAll(ClaimTypeRole), 1)
}

func TestDecodeActor_NestedConflict(t *testing.T) {
	inner := NewIdentity()
	inner.AddClaim(Claim{Type: ClaimTypeRole, Value: "inner"})
	innerBlob, err := EncodeActor(inner)
	require.NoError(t, err)

	// Hand-build a level with two actor attributes.
	blob := `<Actor xmlns:saml="urn:oasis:names:tc:SAML:2.0:assertion">` +
		actorAttributeXML(t, innerBlob) +
		actorAttributeXML(t, innerBlob) +
		`</Actor>`

	_, err = DecodeActor(blob, "idp")
	assert.ErrorIs(t, err, ErrNestedActorConflict)
}

func actorAttributeXML(t *testing.T, blob string) string {
	t.Helper()
	return `<saml:Attribute Name="` + ClaimTypeActor + `"><saml:AttributeValue>` +
		xmlEscape(blob) + `</saml:AttributeValue></saml:Attribute>`
}

func xmlEscape(s string) string {
	var out []rune
	for _, r := range s {
		switch r {
		case '<':
			out = append(out, []rune("&lt;")...)
		case '>':
			out = append(out, []rune("&gt;")...)
		case '&':
			out = append(out, []rune("&amp;")...)
		case '"':
			out = append(out, []rune("&quot;")...)
		default:
			out = append(out, r)
		}
	}
	return string(out)
}

func TestDecodeActor_Malformed(t *testing.T) {
	_, err := DecodeActor("<NotActor/>", "idp")
	assert.Error(t, err)

	_, err = DecodeActor("not xml <", "idp")
	assert.Error(t, err)
}

func TestEncodeActor_Nil(t *testing.T) {
	_, err := EncodeActor(nil)
	assert.Error(t, err)
}
