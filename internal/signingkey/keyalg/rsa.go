package keyalg

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"math/big"

	signingdomain "github.com/smallbiznis/meridian/internal/signingkey/domain"
)

const rsaKeyBits = 2048

type rsaAlgorithm struct{}

func (rsaAlgorithm) Type() signingdomain.KeyType { return signingdomain.KeyTypeRSA }

func (rsaAlgorithm) JWSAlgorithm() string { return "RS256" }

func (rsaAlgorithm) Generate() (KeyMaterial, error) {
	key, err := rsa.GenerateKey(rand.Reader, rsaKeyBits)
	if err != nil {
		return KeyMaterial{}, err
	}

	privDER := x509.MarshalPKCS1PrivateKey(key)
	pubDER, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		return KeyMaterial{}, err
	}

	return KeyMaterial{
		PublicPEM:  pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER}),
		PrivatePEM: pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: privDER}),
	}, nil
}

func (a rsaAlgorithm) Build(id string, publicPEM, privatePEM []byte) (*signingdomain.SigningKey, error) {
	privBlock, _ := pem.Decode(privatePEM)
	if privBlock == nil {
		return nil, signingdomain.ErrInvalidKeyPEM
	}
	priv, err := x509.ParsePKCS1PrivateKey(privBlock.Bytes)
	if err != nil {
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
	pub, ok := parsed.(*rsa.PublicKey)
	if !ok {
		return nil, signingdomain.ErrInvalidKeyPEM
	}

	return &signingdomain.SigningKey{
		ID:        id,
		Type:      signingdomain.KeyTypeRSA,
		Signer:    priv,
		Public:    pub,
		Algorithm: a.JWSAlgorithm(),
	}, nil
}

func (a rsaAlgorithm) PublicJWK(key *signingdomain.SigningKey) (signingdomain.JWK, error) {
	pub, ok := key.Public.(*rsa.PublicKey)
	if !ok {
		return nil, signingdomain.ErrInvalidKeyPEM
	}

	e := big.NewInt(int64(pub.E))

	return signingdomain.JWK{
		"kty": "RSA",
		"use": "sig",
		"kid": key.ID,
		"alg": a.JWSAlgorithm(),
		"n":   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
		"e":   base64.RawURLEncoding.EncodeToString(e.Bytes()),
	}, nil
}
