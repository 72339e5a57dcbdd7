package token

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestValidateLifetime(t *testing.T) {
	notBefore := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	notOnOrAfter := notBefore.Add(time.Hour)

	tests := []struct {
		name    string
		now     time.Time
		skew    time.Duration
		wantErr bool
	}{
		{name: "inside window", now: notBefore.Add(30 * time.Minute), wantErr: false},
		{name: "before window", now: notBefore.Add(-10 * time.Minute), wantErr: true},
		{name: "before window within skew", now: notBefore.Add(-10 * time.Minute), skew: 15 * time.Minute, wantErr: false},
		{name: "exactly notOnOrAfter", now: notOnOrAfter, wantErr: true},
		{name: "after expiry within skew", now: notOnOrAfter.Add(2 * time.Minute), skew: 5 * time.Minute, wantErr: false},
		{name: "after expiry beyond skew", now: notOnOrAfter.Add(10 * time.Minute), skew: 5 * time.Minute, wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			params := NewValidationParameters()
			params.ClockSkew = tc.skew
			params.Now = func() time.Time { return tc.now }

			err := ValidateLifetime(&notBefore, &notOnOrAfter, nil, params)
			if tc.wantErr {
				assert.ErrorIs(t, err, ErrInvalidLifetime)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateLifetime_OpenBounds(t *testing.T) {
	params := NewValidationParameters()
	params.Now = func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) }

	assert.NoError(t, ValidateLifetime(nil, nil, nil, params))

	past := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.NoError(t, ValidateLifetime(&past, nil, nil, params))
	assert.Error(t, ValidateLifetime(nil, &past, nil, params))
}

func TestValidateAudience(t *testing.T) {
	params := NewValidationParameters()
	params.ValidAudiences = []string{"urn:rp:a", "urn:rp:b"}

	assert.NoError(t, ValidateAudience([]string{"urn:rp:b"}, nil, params))
	assert.NoError(t, ValidateAudience([]string{"urn:rp:x", "urn:rp:a"}, nil, params))
	assert.ErrorIs(t, ValidateAudience([]string{"urn:rp:x"}, nil, params), ErrInvalidAudience)
	assert.ErrorIs(t, ValidateAudience(nil, nil, params), ErrInvalidAudience)

	empty := NewValidationParameters()
	assert.ErrorIs(t, ValidateAudience([]string{"urn:rp:a"}, nil, empty), ErrInvalidAudience)
}

func TestValidateIssuer(t *testing.T) {
	params := NewValidationParameters()
	params.ValidIssuer = "https://idp.example/"
	params.ValidIssuers = []string{"https://partner.example/"}

	issuer, err := ValidateIssuer("https://idp.example/", nil, params)
	assert.NoError(t, err)
	assert.Equal(t, "https://idp.example/", issuer)

	issuer, err = ValidateIssuer("https://partner.example/", nil, params)
	assert.NoError(t, err)
	assert.Equal(t, "https://partner.example/", issuer)

	_, err = ValidateIssuer("https://mallory.example/", nil, params)
	assert.ErrorIs(t, err, ErrInvalidIssuer)

	_, err = ValidateIssuer("", nil, params)
	assert.ErrorIs(t, err, ErrInvalidIssuer)

	empty := NewValidationParameters()
	_, err = ValidateIssuer("https://idp.example/", nil, empty)
	assert.ErrorIs(t, err, ErrInvalidIssuer)
}
