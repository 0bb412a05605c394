package transport

import (
	"bufio"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"io"
	"math/big"

	qerr "github.com/lineflux/qdbsender/errors"
)

// authenticateTCP performs QuestDB's ECDSA challenge-response handshake
// (spec.md §4.5): send the username, read the server's challenge up to a
// newline, sign it with the client's secp256r1 key, and send back the
// base64 DER signature.
func authenticateTCP(rw io.ReadWriter, username, token string) error {
	priv, err := decodeECDSAKey(token)
	if err != nil {
		return err
	}

	if _, err := io.WriteString(rw, username+"\n"); err != nil {
		return qerr.Wrap(qerr.AuthError, "failed to send username to auth challenge", err)
	}

	reader := bufio.NewReader(rw)
	challenge, err := reader.ReadBytes('\n')
	if err != nil {
		return qerr.Wrap(qerr.AuthError, "failed to read auth challenge", err)
	}
	challenge = challenge[:len(challenge)-1]

	sig, err := signChallenge(priv, challenge)
	if err != nil {
		return err
	}

	encoded := base64.StdEncoding.EncodeToString(sig)
	if _, err := io.WriteString(rw, encoded+"\n"); err != nil {
		return qerr.Wrap(qerr.AuthError, "failed to send auth signature", err)
	}
	return nil
}

// decodeECDSAKey parses the base64url-encoded, unpadded private scalar
// QuestDB's `token` configuration key carries and rebuilds the secp256r1
// private key from it.
func decodeECDSAKey(token string) (*ecdsa.PrivateKey, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		// Some configuration tools emit the padded form of the URL-safe
		// alphabet; accept that too rather than rejecting an otherwise-valid
		// token.
		raw, err = base64.URLEncoding.DecodeString(token)
		if err != nil {
			return nil, qerr.Wrap(qerr.AuthError, "failed to decode token as base64", err)
		}
	}

	curve := elliptic.P256()
	d := new(big.Int).SetBytes(raw)
	x, y := curve.ScalarBaseMult(d.Bytes())

	return &ecdsa.PrivateKey{
		PublicKey: ecdsa.PublicKey{Curve: curve, X: x, Y: y},
		D:         d,
	}, nil
}

// signChallenge signs challenge with SHA-256withECDSA and returns the DER
// encoding of the resulting (r, s) pair.
func signChallenge(priv *ecdsa.PrivateKey, challenge []byte) ([]byte, error) {
	digest := sha256.Sum256(challenge)
	sig, err := ecdsa.SignASN1(rand.Reader, priv, digest[:])
	if err != nil {
		return nil, qerr.Wrap(qerr.AuthError, "failed to sign auth challenge", err)
	}
	return sig, nil
}
