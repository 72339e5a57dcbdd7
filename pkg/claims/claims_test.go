package claims

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sirosfoundation/go-saml2/pkg/saml"
)

func TestAttributesFromClaims_Collapse(t *testing.T) {
	claimList := []Claim{
		{Type: "role", Value: "admin", ValueType: ValueTypeString, Issuer: "idp"},
		{Type: "email", Value: "alice@example", ValueType: ValueTypeString, Issuer: "idp"},
		{Type: "role", Value: "auditor", ValueType: ValueTypeString, Issuer: "idp"},
		{Type: "role", Value: "operator", ValueType: ValueTypeString, Issuer: "idp", OriginalIssuer: "upstream"},
	}

	attrs, err := AttributesFromClaims(claimList)
	require.NoError(t, err)

	// Three distinct (name, type, original issuer) keys, insertion order.
	require.Len(t, attrs, 3)
	assert.Equal(t, "role", attrs[0].Name)
	assert.Equal(t, []string{"admin", "auditor"}, attrs[0].Values)
	assert.Equal(t, "email", attrs[1].Name)
	assert.Equal(t, []string{"alice@example"}, attrs[1].Values)
	assert.Equal(t, "role", attrs[2].Name)
	assert.Equal(t, "upstream", attrs[2].OriginalIssuer)
	assert.Equal(t, []string{"operator"}, attrs[2].Values)
}

func TestAttributesFromClaims_OriginalIssuerOnlyWhenDifferent(t *testing.T) {
	attrs, err := AttributesFromClaims([]Claim{
		{Type: "role", Value: "admin", Issuer: "idp", OriginalIssuer: "idp"},
	})
	require.NoError(t, err)
	require.Len(t, attrs, 1)
	assert.Empty(t, attrs[0].OriginalIssuer)
}

func TestAttributesFromClaims_Properties(t *testing.T) {
	c := Claim{Type: "email", Value: "alice@example", Issuer: "idp"}
	c.SetProperty(PropertyAttributeNameFormat, "urn:oasis:names:tc:SAML:2.0:attrname-format:uri")
	c.SetProperty(PropertyAttributeDisplayName, "E-Mail Address")

	attrs, err := AttributesFromClaims([]Claim{c})
	require.NoError(t, err)
	require.Len(t, attrs, 1)
	assert.Equal(t, "urn:oasis:names:tc:SAML:2.0:attrname-format:uri", attrs[0].NameFormat)
	assert.Equal(t, "E-Mail Address", attrs[0].FriendlyName)
}

func TestAttributesFromClaims_InvalidNameFormat(t *testing.T) {
	c := Claim{Type: "email", Value: "alice@example", Issuer: "idp"}
	c.SetProperty(PropertyAttributeNameFormat, "not a uri")

	_, err := AttributesFromClaims([]Claim{c})
	assert.ErrorIs(t, err, ErrInvalidNameFormat)
}

func TestClaimsFromAttribute(t *testing.T) {
	attr := saml.Attribute{
		Name:         "role",
		FriendlyName: "Role",
		NameFormat:   "urn:oasis:names:tc:SAML:2.0:attrname-format:uri",
		Values:       []string{"admin", "auditor"},
	}

	out := ClaimsFromAttribute(attr, "https://idp.example/")
	require.Len(t, out, 2)
	for i, value := range []string{"admin", "auditor"} {
		assert.Equal(t, "role", out[i].Type)
		assert.Equal(t, value, out[i].Value)
		assert.Equal(t, ValueTypeString, out[i].ValueType)
		assert.Equal(t, "https://idp.example/", out[i].Issuer)
		assert.Equal(t, "https://idp.example/", out[i].OriginalIssuer)
		assert.Equal(t, "Role", out[i].Property(PropertyAttributeDisplayName))
	}
}

func TestClaimsFromAttribute_OriginalIssuer(t *testing.T) {
	attr := saml.Attribute{Name: "role", OriginalIssuer: "upstream", Values: []string{"admin"}}
	out := ClaimsFromAttribute(attr, "idp")
	require.Len(t, out, 1)
	assert.Equal(t, "idp", out[0].Issuer)
	assert.Equal(t, "upstream", out[0].OriginalIssuer)
}

func TestIdentityFind(t *testing.T) {
	identity := NewIdentity()
	identity.AddClaim(Claim{Type: ClaimTypeNameIdentifier, Value: "alice"})
	identity.AddClaim(Claim{Type: ClaimTypeRole, Value: "admin"})
	identity.AddClaim(Claim{Type: ClaimTypeRole, Value: "auditor"})

	assert.Len(t, identity.FindAll(ClaimTypeRole), 2)
	assert.Nil(t, identity.First("urn:none"))
	require.NotNil(t, identity.First(ClaimTypeNameIdentifier))
	assert.Equal(t, "alice", identity.First(ClaimTypeNameIdentifier).Value)
}
