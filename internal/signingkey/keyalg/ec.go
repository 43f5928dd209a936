package keyalg

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"

	signingdomain "github.com/smallbiznis/meridian/internal/signingkey/domain"
)

type ecAlgorithm struct{}

func (ecAlgorithm) Type() signingdomain.KeyType { return signingdomain.KeyTypeEC }

func (ecAlgorithm) JWSAlgorithm() string { return "ES256" }

func (ecAlgorithm) Generate() (KeyMaterial, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return KeyMaterial{}, err
	}

	privDER, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		return KeyMaterial{}, err
	}
	pubDER, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		return KeyMaterial{}, err
	}

	return KeyMaterial{
		PublicPEM:  pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER}),
		PrivatePEM: pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: privDER}),
	}, nil
}

func (a ecAlgorithm) Build(id string, publicPEM, privatePEM []byte) (*signingdomain.SigningKey, error) {
	privBlock, _ := pem.Decode(privatePEM)
	if privBlock == nil {
		return nil, signingdomain.ErrInvalidKeyPEM
	}
	priv, err := x509.ParseECPrivateKey(privBlock.Bytes)
	if err != nil {
		return nil, signingdomain.ErrInvalidKeyPEM
	}
	if priv.Curve != elliptic.P256() {
		return nil, signingdomain.ErrInvalidKeyPEM
	}

	pubBlock, _ := pem.Decode(publicPEM)
	if pubBlock == nil {
		return nil, signingdomain.ErrInvalidKeyPEM
	}
	parsed, err := x509.ParsePKIXPublicKey(pubBlock.Bytes)
	if err != nil {
		return nil, signingdomain.ErrInvalidKeyPEM
	}
	pub, ok := parsed.(*ecdsa.PublicKey)
	if !ok {
		return nil, signingdomain.ErrInvalidKeyPEM
	}

	return &signingdomain.SigningKey{
		ID:        id,
		Type:      signingdomain.KeyTypeEC,
		Signer:    priv,
		Public:    pub,
		Algorithm: a.JWSAlgorithm(),
	}, nil
}

func (a ecAlgorithm) PublicJWK(key *signingdomain.SigningKey) (signingdomain.JWK, error) {
	pub, ok := key.Public.(*ecdsa.PublicKey)
	if !ok {
		return nil, signingdomain.ErrInvalidKeyPEM
	}

	size := (pub.Curve.Params().BitSize + 7) / 8
	x := pub.X.FillBytes(make([]byte, size))
	y := pub.Y.FillBytes(make([]byte, size))

	return signingdomain.JWK{
		"kty": "EC",
		"crv": "P-256",
		"use": "sig",
		"kid": key.ID,
		"alg": a.JWSAlgorithm(),
		"x":   base64.RawURLEncoding.EncodeToString(x),
		"y":   base64.RawURLEncoding.EncodeToString(y),
	}, nil
}
