package qrcode

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

const issuer = "event-attendance"

var (
	ErrExpired   = errors.New("qr code expired")
	ErrSignature = errors.New("invalid qr code signature")
	ErrMalformed = errors.New("malformed qr code")
)

// Claims identify the registration a QR code was issued for.
type Claims struct {
	RegistrationID uuid.UUID
	EventID        uuid.UUID
	UserID         uuid.UUID
	ExpiresAt      time.Time
}

type tokenClaims struct {
	RegistrationID string `json:"rid"`
	EventID        string `json:"eid"`
	jwt.RegisteredClaims
}

type Token struct {
	Value     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Signer issues and verifies HS256 signed QR payloads.
type Signer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewSigner(secret string, ttl time.Duration) *Signer {
	return &Signer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// WithClock is used by tests to pin the signer's notion of now.
func (s *Signer) WithClock(now func() time.Time) *Signer {
	cp := *s
	cp.now = now
	return &cp
}

func (s *Signer) Issue(registrationID, eventID, userID uuid.UUID) (Token, error) {
	now := s.now()
	exp := now.Add(s.ttl)
	claims := tokenClaims{
		RegistrationID: registrationID.String(),
		EventID:        eventID.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   userID.String(),
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return Token{}, errors.Wrap(err, "signing qr code")
	}
	return Token{Value: signed, ExpiresAt: exp.Truncate(time.Second)}, nil
}

// Verify checks signature and expiry. The returned error's message is safe to show to users.
func (s *Signer) Verify(payload string) (Claims, error) {
	parsed, err := jwt.ParseWithClaims(payload, &tokenClaims{}, func(token *jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return Claims{}, ErrExpired
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return Claims{}, ErrSignature
	case err != nil || !parsed.Valid:
		return Claims{}, ErrMalformed
	}

	tc, ok := parsed.Claims.(*tokenClaims)
	if !ok {
		return Claims{}, ErrMalformed
	}
	regID, err1 := uuid.Parse(tc.RegistrationID)
	eventID, err2 := uuid.Parse(tc.EventID)
	userID, err3 := uuid.Parse(tc.Subject)
	if err1 != nil || err2 != nil || err3 != nil {
		return Claims{}, ErrMalformed
	}
	return Claims{
		RegistrationID: regID,
		EventID:        eventID,
		UserID:         userID,
		ExpiresAt:      tc.ExpiresAt.Time,
	}, nil
}
