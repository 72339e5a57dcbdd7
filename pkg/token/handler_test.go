package token

import (
	"bytes"
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sirosfoundation/go-saml2/pkg/claims"
	"github.com/sirosfoundation/go-saml2/pkg/saml"
	"github.com/sirosfoundation/go-saml2/pkg/xmlsec"
)

const (
	testIssuer   = "https://idp.example/"
	testAudience = "urn:rp:test"
)

var (
	testNotBefore = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	testExpires   = time.Date(2024, 1, 1, 1, 0, 0, 0, time.UTC)
	testNow       = time.Date(2024, 1, 1, 0, 30, 0, 0, time.UTC)
)

func newTestHandler(t *testing.T) *Handler {
	t.Helper()
	h, err := NewHandler(HandlerConfig{})
	require.NoError(t, err)
	return h
}

func testKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return key
}

func testIdentity() *claims.Identity {
	identity := claims.NewIdentity()
	identity.AddClaim(claims.Claim{
		Type:      claims.ClaimTypeNameIdentifier,
		Value:     "alice",
		ValueType: claims.ValueTypeString,
		Issuer:    testIssuer,
	})
	identity.AddClaim(claims.Claim{
		Type:      claims.ClaimTypeEmail,
		Value:     "alice@example",
		ValueType: claims.ValueTypeString,
		Issuer:    testIssuer,
	})
	return identity
}

// issueToken creates and signs the reference assertion of the test suite.
func issueToken(t *testing.T, h *Handler, key *rsa.PrivateKey, kid string, mutate func(*Descriptor)) []byte {
	t.Helper()
	notBefore, expires := testNotBefore, testExpires
	d := &Descriptor{
		Issuer:    testIssuer,
		Subject:   testIdentity(),
		NotBefore: &notBefore,
		Expires:   &expires,
		Audience:  testAudience,
		SigningCredentials: &xmlsec.SigningCredentials{
			Signer: key,
			KeyID:  kid,
		},
	}
	if mutate != nil {
		mutate(d)
	}
	tok, err := h.CreateToken(d)
	require.NoError(t, err)
	out, err := h.WriteToken(tok)
	require.NoError(t, err)
	return out
}

func testParams(key *rsa.PrivateKey, kid string) *ValidationParameters {
	params := NewValidationParameters()
	params.IssuerSigningKey = xmlsec.NewRSAVerificationKey(&key.PublicKey, kid)
	params.ValidIssuer = testIssuer
	params.ValidAudiences = []string{testAudience}
	params.Now = func() time.Time { return testNow }
	return params
}

func claimValue(t *testing.T, identity *claims.Identity, claimType string) string {
	t.Helper()
	c := identity.First(claimType)
	require.NotNil(t, c, "claim %s missing", claimType)
	return c.Value
}

func TestValidateToken_HappyPath(t *testing.T) {
	h := newTestHandler(t)
	key := testKey(t)
	token := issueToken(t, h, key, "k1", nil)

	identity, tok, err := h.ValidateToken(token, testParams(key, "k1"))
	require.NoError(t, err)

	assert.Equal(t, "alice", claimValue(t, identity, claims.ClaimTypeNameIdentifier))
	assert.Equal(t, "alice@example", claimValue(t, identity, claims.ClaimTypeEmail))

	require.NotNil(t, tok.Assertion.SigningKey)
	assert.Equal(t, "k1", tok.Assertion.SigningKey.KeyID())

	for _, c := range identity.Claims {
		assert.Equal(t, testIssuer, c.Issuer)
	}
}

func TestValidateToken_Idempotent(t *testing.T) {
	h := newTestHandler(t)
	key := testKey(t)
	token := issueToken(t, h, key, "k1", nil)

	first, _, err := h.ValidateToken(token, testParams(key, "k1"))
	require.NoError(t, err)
	second, _, err := h.ValidateToken(token, testParams(key, "k1"))
	require.NoError(t, err)
	assert.ElementsMatch(t, first.Claims, second.Claims)
}

func TestValidateToken_StaleKey(t *testing.T) {
	h := newTestHandler(t)
	key := testKey(t)
	token := issueToken(t, h, key, "k1", nil)

	// The relying party only has key k2; the assertion names k1.
	otherKey := testKey(t)
	_, _, err := h.ValidateToken(token, testParams(otherKey, "k2"))
	assert.ErrorIs(t, err, ErrSignatureKeyNotFound)
}

func TestValidateToken_WrongKeyWithoutKid(t *testing.T) {
	h := newTestHandler(t)
	key := testKey(t)
	// No key id on the signature: trial verification runs and aggregates.
	token := issueToken(t, h, key, "", nil)

	otherKey := testKey(t)
	_, _, err := h.ValidateToken(token, testParams(otherKey, ""))
	assert.ErrorIs(t, err, ErrInvalidSignature)

	var sigErr *SignatureVerificationError
	require.ErrorAs(t, err, &sigErr)
	assert.False(t, sigErr.EmptyKeySet)
	require.Len(t, sigErr.KeysTried, 1)
	assert.Equal(t, "(no key id)", sigErr.KeysTried[0])
	require.Len(t, sigErr.KeyErrors, 1)
}

func TestValidateToken_NoKeysConfigured(t *testing.T) {
	h := newTestHandler(t)
	key := testKey(t)
	token := issueToken(t, h, key, "", nil)

	params := testParams(key, "")
	params.IssuerSigningKey = nil
	_, _, err := h.ValidateToken(token, params)

	var sigErr *SignatureVerificationError
	require.ErrorAs(t, err, &sigErr)
	assert.True(t, sigErr.EmptyKeySet)
}

func TestValidateToken_Expired(t *testing.T) {
	h := newTestHandler(t)
	key := testKey(t)
	token := issueToken(t, h, key, "k1", nil)

	params := testParams(key, "k1")
	params.Now = func() time.Time { return time.Date(2024, 1, 1, 2, 0, 0, 0, time.UTC) }
	_, _, err := h.ValidateToken(token, params)
	assert.ErrorIs(t, err, ErrInvalidLifetime)
}

func TestValidateToken_NotYetValid(t *testing.T) {
	h := newTestHandler(t)
	key := testKey(t)
	token := issueToken(t, h, key, "k1", nil)

	params := testParams(key, "k1")
	params.Now = func() time.Time { return time.Date(2023, 12, 31, 22, 0, 0, 0, time.UTC) }
	_, _, err := h.ValidateToken(token, params)
	assert.ErrorIs(t, err, ErrInvalidLifetime)
}

func TestValidateToken_ClockSkewTolerates(t *testing.T) {
	h := newTestHandler(t)
	key := testKey(t)
	token := issueToken(t, h, key, "k1", nil)

	// Two minutes past expiry, five minutes of skew.
	params := testParams(key, "k1")
	params.Now = func() time.Time { return testExpires.Add(2 * time.Minute) }
	_, _, err := h.ValidateToken(token, params)
	assert.NoError(t, err)
}

func TestValidateToken_WrongAudience(t *testing.T) {
	h := newTestHandler(t)
	key := testKey(t)
	token := issueToken(t, h, key, "k1", nil)

	params := testParams(key, "k1")
	params.ValidAudiences = []string{"urn:rp:other"}
	_, _, err := h.ValidateToken(token, params)
	assert.ErrorIs(t, err, ErrInvalidAudience)
}

func TestValidateToken_WrongIssuer(t *testing.T) {
	h := newTestHandler(t)
	key := testKey(t)
	token := issueToken(t, h, key, "k1", nil)

	params := testParams(key, "k1")
	params.ValidIssuer = "https://other.example/"
	_, _, err := h.ValidateToken(token, params)
	assert.ErrorIs(t, err, ErrInvalidIssuer)
}

func TestValidateToken_OneTimeUseRequiresOverride(t *testing.T) {
	h := newTestHandler(t)
	key := testKey(t)

	// CreateToken never emits OneTimeUse; mark the assertion by hand.
	notBefore, expires := testNotBefore, testExpires
	tok, err := h.CreateToken(&Descriptor{
		Issuer:             testIssuer,
		Subject:            testIdentity(),
		NotBefore:          &notBefore,
		Expires:            &expires,
		Audience:           testAudience,
		SigningCredentials: &xmlsec.SigningCredentials{Signer: key, KeyID: "k1"},
	})
	require.NoError(t, err)
	tok.Assertion.Conditions.OneTimeUse = true
	token, err := h.WriteToken(tok)
	require.NoError(t, err)

	_, _, err = h.ValidateToken(token, testParams(key, "k1"))
	assert.ErrorIs(t, err, ErrRequiresOverride)
}

func TestValidateToken_ProxyRestrictionRequiresOverride(t *testing.T) {
	h := newTestHandler(t)
	key := testKey(t)

	notBefore, expires := testNotBefore, testExpires
	tok, err := h.CreateToken(&Descriptor{
		Issuer:             testIssuer,
		Subject:            testIdentity(),
		NotBefore:          &notBefore,
		Expires:            &expires,
		Audience:           testAudience,
		SigningCredentials: &xmlsec.SigningCredentials{Signer: key, KeyID: "k1"},
	})
	require.NoError(t, err)
	count := 0
	tok.Assertion.Conditions.ProxyRestriction = &saml.ProxyRestriction{Count: &count}
	token, err := h.WriteToken(tok)
	require.NoError(t, err)

	_, _, err = h.ValidateToken(token, testParams(key, "k1"))
	assert.ErrorIs(t, err, ErrRequiresOverride)
}

func TestValidateToken_ActorRoundTrip(t *testing.T) {
	h := newTestHandler(t)
	key := testKey(t)

	actor := claims.NewIdentity()
	actor.AddClaim(claims.Claim{
		Type:      claims.ClaimTypeNameIdentifier,
		Value:     "svc",
		ValueType: claims.ValueTypeString,
		Issuer:    testIssuer,
	})
	actor.AddClaim(claims.Claim{
		Type:      claims.ClaimTypeRole,
		Value:     "system",
		ValueType: claims.ValueTypeString,
		Issuer:    testIssuer,
	})

	token := issueToken(t, h, key, "k1", func(d *Descriptor) {
		d.Subject.AddClaim(claims.Claim{
			Type:      claims.ClaimTypeRole,
			Value:     "admin",
			ValueType: claims.ValueTypeString,
			Issuer:    testIssuer,
		})
		d.Subject.Actor = actor
	})

	identity, _, err := h.ValidateToken(token, testParams(key, "k1"))
	require.NoError(t, err)

	assert.Equal(t, "alice", claimValue(t, identity, claims.ClaimTypeNameIdentifier))
	assert.Equal(t, "admin", claimValue(t, identity, claims.ClaimTypeRole))

	require.NotNil(t, identity.Actor)
	// The actor's name identifier claim is not carried through the blob.
	assert.Equal(t, "system", claimValue(t, identity.Actor, claims.ClaimTypeRole))
	assert.Nil(t, identity.Actor.Actor)
}

func TestValidateToken_Unsigned(t *testing.T) {
	h := newTestHandler(t)
	key := testKey(t)

	token := issueToken(t, h, key, "k1", func(d *Descriptor) {
		d.SigningCredentials = nil
	})

	_, _, err := h.ValidateToken(token, testParams(key, "k1"))
	assert.ErrorIs(t, err, ErrMissingSignature)

	params := testParams(key, "k1")
	params.RequireSignedTokens = false
	identity, tok, err := h.ValidateToken(token, params)
	require.NoError(t, err)
	assert.Nil(t, tok.Assertion.SigningKey)
	assert.Equal(t, "alice", claimValue(t, identity, claims.ClaimTypeNameIdentifier))
}

func TestValidateToken_SignatureValidatorOverride(t *testing.T) {
	h := newTestHandler(t)
	key := testKey(t)
	token := issueToken(t, h, key, "k1", nil)

	params := testParams(key, "k1")
	params.SignatureValidator = func(_ []byte, _ *ValidationParameters) (*saml.Assertion, error) {
		return nil, nil
	}
	_, _, err := h.ValidateToken(token, params)
	assert.ErrorIs(t, err, ErrInvalidSignature)

	custom := errors.New("custom signature failure")
	params.SignatureValidator = func(_ []byte, _ *ValidationParameters) (*saml.Assertion, error) {
		return nil, custom
	}
	_, _, err = h.ValidateToken(token, params)
	assert.ErrorIs(t, err, custom)
}

func TestValidateToken_KeyResolverCallback(t *testing.T) {
	h := newTestHandler(t)
	key := testKey(t)
	token := issueToken(t, h, key, "k1", nil)

	resolved := false
	params := testParams(testKey(t), "unrelated")
	params.IssuerSigningKeyResolver = func(_ []byte, _ *saml.Assertion, kid string, _ *ValidationParameters) []xmlsec.VerificationKey {
		resolved = true
		assert.Equal(t, "k1", kid)
		return []xmlsec.VerificationKey{xmlsec.NewRSAVerificationKey(&key.PublicKey, "k1")}
	}

	_, tok, err := h.ValidateToken(token, params)
	require.NoError(t, err)
	assert.True(t, resolved)
	assert.Equal(t, "k1", tok.Assertion.SigningKey.KeyID())
}

func TestValidateToken_AuthnStatementClaims(t *testing.T) {
	h := newTestHandler(t)
	key := testKey(t)

	instant := time.Date(2024, 1, 1, 0, 15, 0, 0, time.UTC)
	token := issueToken(t, h, key, "k1", func(d *Descriptor) {
		d.AuthenticationContext = &AuthenticationContext{
			ClassRef: "urn:oasis:names:tc:SAML:2.0:ac:classes:PasswordProtectedTransport",
			Instant:  instant,
			SessionIndex: "s1",
		}
	})

	identity, _, err := h.ValidateToken(token, testParams(key, "k1"))
	require.NoError(t, err)

	assert.Equal(t,
		"urn:oasis:names:tc:SAML:2.0:ac:classes:PasswordProtectedTransport",
		claimValue(t, identity, claims.ClaimTypeAuthenticationMethod))
	assert.Equal(t, "2024-01-01T00:15:00.000Z",
		claimValue(t, identity, claims.ClaimTypeAuthenticationInstant))
}

func TestValidateToken_DeclarationReferenceRejected(t *testing.T) {
	h := newTestHandler(t)

	token := []byte(`<saml:Assertion xmlns:saml="urn:oasis:names:tc:SAML:2.0:assertion" ID="_x" Version="2.0" IssueInstant="2024-01-01T00:00:00.000Z">
<saml:Issuer>` + testIssuer + `</saml:Issuer>
<saml:Subject><saml:NameID>alice</saml:NameID></saml:Subject>
<saml:AuthnStatement AuthnInstant="2024-01-01T00:00:00.000Z">
<saml:AuthnContext><saml:AuthnContextDeclRef>urn:example:decl</saml:AuthnContextDeclRef></saml:AuthnContext>
</saml:AuthnStatement>
</saml:Assertion>`)

	params := NewValidationParameters()
	params.RequireSignedTokens = false
	params.ValidIssuer = testIssuer
	params.Now = func() time.Time { return testNow }

	_, _, err := h.ValidateToken(token, params)
	assert.ErrorIs(t, err, ErrUnsupportedAuthnContext)
}

func TestValidateToken_MissingSubject(t *testing.T) {
	h := newTestHandler(t)

	token := []byte(`<saml:Assertion xmlns:saml="urn:oasis:names:tc:SAML:2.0:assertion" ID="_x" Version="2.0" IssueInstant="2024-01-01T00:00:00.000Z">
<saml:Issuer>` + testIssuer + `</saml:Issuer>
</saml:Assertion>`)

	params := NewValidationParameters()
	params.RequireSignedTokens = false
	params.ValidIssuer = testIssuer
	params.Now = func() time.Time { return testNow }

	_, _, err := h.ValidateToken(token, params)
	assert.ErrorIs(t, err, ErrMissingSubject)
}

func TestValidateToken_SaveSigninToken(t *testing.T) {
	h := newTestHandler(t)
	key := testKey(t)
	token := issueToken(t, h, key, "k1", nil)

	params := testParams(key, "k1")
	params.SaveSigninToken = true
	identity, tok, err := h.ValidateToken(token, params)
	require.NoError(t, err)
	assert.Same(t, tok, identity.BootstrapToken)
}

func TestCanReadToken(t *testing.T) {
	h := newTestHandler(t)
	key := testKey(t)
	token := issueToken(t, h, key, "k1", nil)

	assert.True(t, h.CanReadToken(token))
	assert.False(t, h.CanReadToken(nil))
	assert.False(t, h.CanReadToken([]byte("   \n\t ")))
	assert.False(t, h.CanReadToken([]byte("<Other xmlns=\"urn:example\"/>")))
	assert.False(t, h.CanReadToken([]byte("not xml <")))

	small, err := NewHandler(HandlerConfig{MaxTokenSize: 16})
	require.NoError(t, err)
	assert.False(t, small.CanReadToken(token))
}

func TestReadToken_Gates(t *testing.T) {
	h := newTestHandler(t)
	key := testKey(t)
	token := issueToken(t, h, key, "k1", nil)

	small, err := NewHandler(HandlerConfig{MaxTokenSize: 16})
	require.NoError(t, err)
	_, err = small.ReadToken(token)
	assert.ErrorIs(t, err, ErrOversizeInput)

	_, err = h.ReadToken([]byte("<Other xmlns=\"urn:example\"/>"))
	assert.ErrorIs(t, err, ErrMalformed)

	tok, err := h.ReadToken(token)
	require.NoError(t, err)
	assert.Equal(t, testIssuer, tok.Assertion.Issuer.Value)
	require.NotNil(t, tok.Assertion.Signature)
}

func TestHandlerConfiguration(t *testing.T) {
	h := newTestHandler(t)
	assert.Equal(t, DefaultMaxTokenSize, h.MaxTokenSize())

	require.NoError(t, h.SetMaxTokenSize(1024))
	assert.Equal(t, 1024, h.MaxTokenSize())

	assert.ErrorIs(t, h.SetMaxTokenSize(0), ErrInvalidConfiguration)
	assert.ErrorIs(t, h.SetMaxTokenSize(-5), ErrInvalidConfiguration)
	assert.ErrorIs(t, h.SetSerializer(nil), ErrInvalidConfiguration)
	assert.ErrorIs(t, h.SetTransformFactory(nil), ErrInvalidConfiguration)

	_, err := NewHandler(HandlerConfig{MaxTokenSize: -1})
	assert.ErrorIs(t, err, ErrInvalidConfiguration)
}

func TestCreateToken_Rejections(t *testing.T) {
	h := newTestHandler(t)

	_, err := h.CreateToken(nil)
	assert.ErrorIs(t, err, ErrInvalidConfiguration)

	_, err = h.CreateToken(&Descriptor{Subject: testIdentity()})
	assert.ErrorIs(t, err, ErrMissingIssuer)

	_, err = h.CreateToken(&Descriptor{
		Issuer:                testIssuer,
		Subject:               testIdentity(),
		EncryptingCredentials: &xmlsec.EncryptingCredentials{},
	})
	assert.ErrorIs(t, err, ErrEncryptionNotSupported)

	duplicated := testIdentity()
	duplicated.AddClaim(claims.Claim{Type: claims.ClaimTypeNameIdentifier, Value: "bob"})
	_, err = h.CreateToken(&Descriptor{Issuer: testIssuer, Subject: duplicated})
	assert.ErrorIs(t, err, ErrDuplicateNameID)
}

func TestCreateToken_BearerConfirmation(t *testing.T) {
	h := newTestHandler(t)
	tok, err := h.CreateToken(&Descriptor{Issuer: testIssuer, Subject: testIdentity()})
	require.NoError(t, err)

	require.NotNil(t, tok.Assertion.Subject)
	require.Len(t, tok.Assertion.Subject.Confirmations, 1)
	assert.Equal(t, saml.ConfirmationMethodBearer, tok.Assertion.Subject.Confirmations[0].Method)
	require.NotNil(t, tok.Assertion.Subject.NameID)
	assert.Equal(t, "alice", tok.Assertion.Subject.NameID.Value)
}

func TestCreateToken_CollapsesAttributes(t *testing.T) {
	h := newTestHandler(t)
	key := testKey(t)

	token := issueToken(t, h, key, "k1", func(d *Descriptor) {
		d.Subject.AddClaim(claims.Claim{Type: claims.ClaimTypeRole, Value: "admin", Issuer: testIssuer})
		d.Subject.AddClaim(claims.Claim{Type: claims.ClaimTypeRole, Value: "auditor", Issuer: testIssuer})
	})

	tok, err := h.ReadToken(token)
	require.NoError(t, err)

	var attrStmt *saml.AttributeStatement
	for _, stmt := range tok.Assertion.Statements {
		if st, ok := stmt.(*saml.AttributeStatement); ok {
			attrStmt = st
		}
	}
	require.NotNil(t, attrStmt)

	for _, attr := range attrStmt.Attributes {
		if attr.Name == claims.ClaimTypeRole {
			assert.Equal(t, []string{"admin", "auditor"}, attr.Values)
			return
		}
	}
	t.Fatal("role attribute not found")
}

func TestWriteTokenTo(t *testing.T) {
	h := newTestHandler(t)
	tok, err := h.CreateToken(&Descriptor{Issuer: testIssuer, Subject: testIdentity()})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, h.WriteTokenTo(&buf, tok))
	assert.True(t, strings.Contains(buf.String(), "Assertion"))
}
