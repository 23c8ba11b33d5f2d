// Package credential turns a ticket id into the opaque payload printed in a
// ticket's QR code and resolves presented payloads back to ticket ids.
//
// A payload is a verification URL whose token parameter is an HS256 JWT with
// only iss and sub claims. With no time claims the token, and therefore the
// payload, is a pure function of the ticket id and the signing secret.
package credential

import (
	"bytes"
	"errors"
	"fmt"
	"image/png"
	"net/url"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/skip2/go-qrcode"
)

// VerifyPath is where the HTTP surface serves scan verification.
const VerifyPath = "/verify"

// TokenParam is the query parameter carrying the signed token.
const TokenParam = "token"

var ErrInvalidCredential = errors.New("invalid credential")

type Encoder struct {
	verifyURL *url.URL
	issuer    string
	secret    []byte
}

func NewEncoder(baseURL, issuer, secret string) (*Encoder, error) {
	if secret == "" {
		return nil, errors.New("credential: empty signing secret")
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("credential: parse base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("credential: base url %q must be absolute", baseURL)
	}
	u.Path = strings.TrimRight(u.Path, "/") + VerifyPath
	u.RawQuery = ""

	return &Encoder{verifyURL: u, issuer: issuer, secret: []byte(secret)}, nil
}

// Encode returns the credential payload for a ticket id.
func (e *Encoder) Encode(ticketID string) (string, error) {
	if _, err := uuid.Parse(ticketID); err != nil {
		return "", fmt.Errorf("credential: ticket id %q: %w", ticketID, err)
	}

	token, err := e.Token(ticketID)
	if err != nil {
		return "", err
	}

	u := *e.verifyURL
	q := url.Values{}
	q.Set(TokenParam, token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Token returns only the signed token part of the payload.
func (e *Encoder) Token(ticketID string) (string, error) {
	claims := jwt.RegisteredClaims{
		Issuer:  e.issuer,
		Subject: ticketID,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(e.secret)
	if err != nil {
		return "", fmt.Errorf("credential: sign token: %w", err)
	}
	return signed, nil
}

// Decode resolves a presented payload to a ticket id. It accepts either the
// full verification URL or the bare token. Every failure wraps
// ErrInvalidCredential.
func (e *Encoder) Decode(payload string) (string, error) {
	token := strings.TrimSpace(payload)
	if token == "" {
		return "", fmt.Errorf("%w: empty payload", ErrInvalidCredential)
	}

	if strings.Contains(token, "://") {
		u, err := url.Parse(token)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrInvalidCredential, err)
		}
		token = u.Query().Get(TokenParam)
		if token == "" {
			return "", fmt.Errorf("%w: url has no %s parameter", ErrInvalidCredential, TokenParam)
		}
	}

	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) { return e.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(e.issuer),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidCredential, err)
	}

	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return "", fmt.Errorf("%w: subject is not a ticket id", ErrInvalidCredential)
	}
	return id.String(), nil
}

// QRCode renders a payload as a PNG image of size x size pixels.
func QRCode(payload string, size int) ([]byte, error) {
	qr, err := qrcode.New(payload, qrcode.Medium)
	if err != nil {
		return nil, fmt.Errorf("credential: build qr: %w", err)
	}

	buf := new(bytes.Buffer)
	if err := png.Encode(buf, qr.Image(size)); err != nil {
		return nil, fmt.Errorf("credential: encode qr png: %w", err)
	}
	return buf.Bytes(), nil
}
